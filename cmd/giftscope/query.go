package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"giftscope/internal/api"
	"giftscope/internal/filter"
)

var (
	queryFilters  []string
	queryID       string
	queryPage     int
	queryPageSize int
	querySort     string
	queryJSON     bool
	attrsRefresh  bool
)

var attributesCmd = &cobra.Command{
	Use:   "attributes NAME",
	Short: "Print the attribute catalog of a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttributes,
}

var itemsCmd = &cobra.Command{
	Use:   "items NAME",
	Short: "List one page of gifts matching the filters",
	Example: `  giftscope items "Plush Pepe" --filter Model=Red,Blue --filter Backdrop=Gold
  giftscope items "Plush Pepe" --id 1007`,
	Args: cobra.ExactArgs(1),
	RunE: runItems,
}

var countCmd = &cobra.Command{
	Use:   "count NAME",
	Short: "Print how many gifts match the filters",
	Args:  cobra.ExactArgs(1),
	RunE:  runCount,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect NAME",
	Short: "Summarise a collection: catalog and first page",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	attributesCmd.Flags().BoolVar(&queryJSON, "json", false, "JSON output")
	attributesCmd.Flags().BoolVar(&attrsRefresh, "refresh", false, "Bypass the catalog cache")

	for _, c := range []*cobra.Command{itemsCmd, countCmd} {
		c.Flags().StringArrayVarP(&queryFilters, "filter", "f", nil, "Trait=Value[,Value...] (repeatable)")
		c.Flags().StringVar(&queryID, "id", "", "Gift id or number")
		c.Flags().StringVar(&querySort, "sort", "", "price_asc|price_desc|number_asc|number_desc|newest (default: filters.default_sort)")
		c.Flags().BoolVar(&queryJSON, "json", false, "JSON output")
	}
	itemsCmd.Flags().IntVar(&queryPage, "page", 1, "Page number")
	itemsCmd.Flags().IntVar(&queryPageSize, "page-size", 0, "Items per page (default: filters.page_size)")
	inspectCmd.Flags().BoolVar(&queryJSON, "json", false, "JSON output")

	rootCmd.AddCommand(attributesCmd, itemsCmd, countCmd, inspectCmd)
}

func resetQueryFlags() {
	queryFilters = nil
	queryID = ""
	queryPage = 1
	queryPageSize = 0
	querySort = ""
	queryJSON = false
	attrsRefresh = false
}

func runAttributes(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := cmd.Context()
	name := args[0]
	if attrsRefresh {
		s.source.Forget(name)
		if _, err := s.db.DeleteCatalogs(ctx, name); err != nil {
			return err
		}
	}
	cat, err := s.source.Attributes(ctx, name)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if queryJSON {
		return writeJSON(out, cat)
	}
	var rows [][]string
	for _, trait := range cat.Traits() {
		for _, v := range cat.Options(trait) {
			st, _ := cat.Stat(trait, v)
			rows = append(rows, []string{trait, v, humanize.Comma(int64(st.Count)), fmt.Sprintf("%.2f%%", st.Percentage)})
		}
	}
	fmt.Fprintln(out, renderTable([]string{"TRAIT", "VALUE", "COUNT", "SHARE"}, rows))
	fmt.Fprintf(out, "%d traits, %d values\n", len(cat), cat.Size())
	return nil
}

// buildSelection combines --filter and --id.
func buildSelection() (filter.Selection, error) {
	sel, err := filter.ParseAssignments(queryFilters)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(queryID) != "" {
		return filter.SetID(sel, queryID)
	}
	return sel, nil
}

func (s *session) sortFlag() (filter.Sort, error) {
	raw := querySort
	if raw == "" {
		raw = s.cfg.Filters.DefaultSort
	}
	return filter.ParseSort(raw)
}

func runItems(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()
	sel, err := buildSelection()
	if err != nil {
		return err
	}
	order, err := s.sortFlag()
	if err != nil {
		return err
	}
	size := queryPageSize
	if size <= 0 {
		size = s.cfg.Filters.PageSize
	}
	q := filter.Query{Collection: args[0], Page: queryPage, PageSize: size, Filters: sel, Sort: order}
	res, err := s.source.CollectionData(cmd.Context(), q)
	if err != nil {
		return err
	}
	data := res.CollectionData
	out := cmd.OutOrStdout()
	if queryJSON {
		return writeJSON(out, data)
	}
	if len(data.Items) == 0 {
		fmt.Fprintln(out, "No gifts match the filters.")
		return nil
	}
	fmt.Fprintln(out, renderTable([]string{"#", "NAME", "MODEL", "BACKDROP", "SYMBOL", "PRICE"}, itemRows(data.Items)))
	fmt.Fprintf(out, "page %d/%d • %s items\n", data.CurrentPage, data.TotalPages, humanize.Comma(int64(data.TotalItems)))
	return nil
}

func itemRows(items []api.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		price := "-"
		if it.Price > 0 {
			price = strings.TrimSpace(humanize.CommafWithDigits(it.Price, 2) + " " + it.Currency)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", it.Number),
			it.Name,
			it.Trait(filter.TraitModel),
			it.Trait(filter.TraitBackdrop),
			it.Trait(filter.TraitSymbol),
			price,
		})
	}
	return rows
}

func runCount(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()
	sel, err := buildSelection()
	if err != nil {
		return err
	}
	order, err := s.sortFlag()
	if err != nil {
		return err
	}
	page, err := s.source.Items(cmd.Context(), filter.CountQuery(args[0], sel, order))
	if err != nil {
		return err
	}
	s.metrics.ObservePreviewCount(page.TotalItems)
	out := cmd.OutOrStdout()
	if queryJSON {
		return writeJSON(out, map[string]any{"collection": args[0], "filters": sel, "total": page.TotalItems})
	}
	fmt.Fprintln(out, page.TotalItems)
	return nil
}

type inspectReport struct {
	Collection string         `json:"collection"`
	TotalItems int            `json:"total_items"`
	TotalPages int            `json:"total_pages"`
	Catalog    filter.Catalog `json:"catalog"`
	FirstPage  []api.Item     `json:"first_page"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	s, err := openSession(false)
	if err != nil {
		return err
	}
	defer s.Close()
	name := args[0]
	order, err := s.sortFlag()
	if err != nil {
		return err
	}

	var rep inspectReport
	rep.Collection = name
	g, gctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		cat, err := s.source.Attributes(gctx, name)
		rep.Catalog = cat
		return err
	})
	g.Go(func() error {
		res, err := s.source.CollectionData(gctx, filter.Query{Collection: name, Page: 1, PageSize: 5, Sort: order})
		if err != nil {
			return err
		}
		rep.TotalItems = res.CollectionData.TotalItems
		rep.TotalPages = res.CollectionData.TotalPages
		rep.FirstPage = res.CollectionData.Items
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		return writeJSON(out, rep)
	}
	fmt.Fprintf(out, "%s: %s gifts, %d traits, %d values\n", name, humanize.Comma(int64(rep.TotalItems)), len(rep.Catalog), rep.Catalog.Size())
	var rows [][]string
	for _, trait := range rep.Catalog.Traits() {
		opts := rep.Catalog.Options(trait)
		top := opts
		if len(top) > 3 {
			top = top[:3]
		}
		rows = append(rows, []string{trait, humanize.Comma(int64(len(opts))), strings.Join(top, ", ")})
	}
	fmt.Fprintln(out, renderTable([]string{"TRAIT", "VALUES", "MOST COMMON"}, rows))
	if len(rep.FirstPage) > 0 {
		fmt.Fprintln(out, renderTable([]string{"#", "NAME", "MODEL", "BACKDROP", "SYMBOL", "PRICE"}, itemRows(rep.FirstPage)))
	}
	return nil
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
