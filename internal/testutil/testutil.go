package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"giftscope/internal/api"
	"giftscope/internal/config"
	"giftscope/internal/filter"
	"giftscope/internal/state"
)

// FakeAPI is an httptest server speaking the Data Source API over an in-memory
// set of collections. It filters, sorts and paginates like the real service.
type FakeAPI struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string][]api.Item
	failures    []int
	Requests    []RecordedRequest
}

// RecordedRequest is one request the fake served.
type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

type queryBody struct {
	Page              int         `json:"page"`
	PageSize          int         `json:"page_size"`
	Filters           filtersBody `json:"filters"`
	Sort              string      `json:"sort"`
	IncludeAttributes bool        `json:"include_attributes"`
}

type filtersBody struct {
	Attributes filter.Selection `json:"attributes"`
}

// NewFakeAPI starts a server with no collections; add some with AddCollection.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	f := &FakeAPI{collections: map[string][]api.Item{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{name}/attributes", f.handleAttributes)
	mux.HandleFunc("POST /collections/{name}/items", f.handleItems)
	mux.HandleFunc("POST /collections/{name}/data", f.handleData)
	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)
	return f
}

// AddCollection registers items under name.
func (f *FakeAPI) AddCollection(name string, items []api.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[name] = append([]api.Item(nil), items...)
}

// FailNext makes the next len(statuses) requests answer with those statuses.
func (f *FakeAPI) FailNext(statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, statuses...)
}

func (f *FakeAPI) RequestCount(pathSuffix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.Requests {
		if strings.HasSuffix(r.Path, pathSuffix) {
			n++
		}
	}
	return n
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil && r.Method == http.MethodPost {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			r.Body = io.NopCloser(bytes.NewReader(raw))
		}
		f.mu.Lock()
		f.Requests = append(f.Requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
		var fail int
		if len(f.failures) > 0 {
			fail, f.failures = f.failures[0], f.failures[1:]
		}
		f.mu.Unlock()
		if fail != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail)
			_, _ = fmt.Fprintf(w, `{"error":"injected failure %d"}`, fail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) lookup(w http.ResponseWriter, r *http.Request) ([]api.Item, bool) {
	f.mu.Lock()
	items, ok := f.collections[r.PathValue("name")]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "collection not found"})
	}
	return items, ok
}

func (f *FakeAPI) handleAttributes(w http.ResponseWriter, r *http.Request) {
	items, ok := f.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, Catalog(items))
}

func (f *FakeAPI) handleItems(w http.ResponseWriter, r *http.Request) {
	items, ok := f.lookup(w, r)
	if !ok {
		return
	}
	q, err := decodeQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, paginate(r.PathValue("name"), items, q))
}

func (f *FakeAPI) handleData(w http.ResponseWriter, r *http.Request) {
	items, ok := f.lookup(w, r)
	if !ok {
		return
	}
	q, err := decodeQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	page := paginate(r.PathValue("name"), items, q)
	attrs := map[string]map[string]filter.Stat{}
	if q.IncludeAttributes {
		attrs = Catalog(items)
	}
	writeJSON(w, http.StatusOK, map[string]any{"collectionData": page, "attributes": attrs})
}

func decodeQuery(r *http.Request) (queryBody, error) {
	var q queryBody
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		return q, fmt.Errorf("bad body: %w", err)
	}
	if q.Page < 1 || q.PageSize < 1 {
		return q, fmt.Errorf("page and page_size must be positive")
	}
	return q, nil
}

func paginate(name string, items []api.Item, q queryBody) api.CollectionData {
	var match []api.Item
	for _, it := range items {
		if Matches(it, q.Filters.Attributes) {
			match = append(match, it)
		}
	}
	sortItems(match, q.Sort)
	total := len(match)
	pages := (total + q.PageSize - 1) / q.PageSize
	start := (q.Page - 1) * q.PageSize
	var out []api.Item
	if start < total {
		end := start + q.PageSize
		if end > total {
			end = total
		}
		out = match[start:end]
	}
	if out == nil {
		out = []api.Item{}
	}
	return api.CollectionData{GiftName: name, Items: out, TotalItems: total, TotalPages: pages, CurrentPage: q.Page}
}

// Matches reports whether it satisfies every trait of sel. Values within a
// trait are alternatives; ID matches the item id or its number.
func Matches(it api.Item, sel filter.Selection) bool {
	for trait, values := range sel {
		if len(values) == 0 {
			continue
		}
		hit := false
		for _, v := range values {
			if trait == filter.IDTrait {
				if v == it.ID || v == strconv.Itoa(it.Number) {
					hit = true
				}
			} else if it.Trait(trait) == v {
				hit = true
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func sortItems(items []api.Item, s string) {
	less := func(i, j int) bool { return items[i].Number < items[j].Number }
	switch filter.Sort(s) {
	case filter.SortPriceAsc:
		less = func(i, j int) bool { return items[i].Price < items[j].Price }
	case filter.SortPriceDesc:
		less = func(i, j int) bool { return items[i].Price > items[j].Price }
	case filter.SortNumberDesc, filter.SortNewest:
		less = func(i, j int) bool { return items[i].Number > items[j].Number }
	}
	sort.SliceStable(items, less)
}

// Catalog computes the attribute catalog of items with percentages rounded to
// two decimals.
func Catalog(items []api.Item) map[string]map[string]filter.Stat {
	out := map[string]map[string]filter.Stat{}
	for _, it := range items {
		for trait, v := range it.Attributes {
			if out[trait] == nil {
				out[trait] = map[string]filter.Stat{}
			}
			st := out[trait][v]
			st.Count++
			out[trait][v] = st
		}
	}
	for _, vals := range out {
		for v, st := range vals {
			pct := float64(st.Count) * 100 / float64(len(items))
			st.Percentage = float64(int(pct*100+0.5)) / 100
			vals[v] = st
		}
	}
	return out
}

// Gifts builds n items named "<name> #i" whose traits cycle through models,
// backdrops and symbols.
func Gifts(name string, n int, models, backdrops, symbols []string) []api.Item {
	out := make([]api.Item, 0, n)
	for i := 1; i <= n; i++ {
		attrs := map[string]string{}
		if len(models) > 0 {
			attrs["Model"] = models[(i-1)%len(models)]
		}
		if len(backdrops) > 0 {
			attrs["Backdrop"] = backdrops[(i-1)%len(backdrops)]
		}
		if len(symbols) > 0 {
			attrs["Symbol"] = symbols[(i-1)%len(symbols)]
		}
		out = append(out, api.Item{
			ID:         strconv.Itoa(1000 + i),
			Name:       fmt.Sprintf("%s #%d", name, i),
			Number:     i,
			Attributes: attrs,
			Price:      float64(n-i+1) * 1.5,
			Currency:   "TON",
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Config returns a valid configuration pointing at baseURL with a temp data root.
func Config(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.API.Backoff = config.Backoff{MinMS: 1, MaxMS: 2}
	cfg.General.DataRoot = TempDir(t)
	return cfg
}

// TestDB opens an in-memory state database closed at test cleanup.
func TestDB(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.OpenMemory()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

// TempDir creates a temporary directory for testing
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "giftscope-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}

// TempFile creates a temporary file with content
func TempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := TempDir(t)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}
