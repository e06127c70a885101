package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"giftscope/internal/config"
	"giftscope/internal/filter"
)

var (
	printJSON   bool
	initForce   bool
	initYes     bool
	initBaseURL string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate, print or create the configuration file",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		if err := c.ValidateWithFriendlyErrors(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "config: valid (%s)\n", config.DefaultPath(cfgPath))
		return nil
	},
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the loaded config with defaults applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		if printJSON {
			return writeJSON(cmd.OutOrStdout(), c)
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(c)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configPrintCmd.Flags().BoolVar(&printJSON, "json", false, "Print as JSON instead of YAML")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	configInitCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Accept defaults without prompting")
	configInitCmd.Flags().StringVar(&initBaseURL, "base-url", "", "Data Source API base URL")
	configCmd.AddCommand(configValidateCmd, configPrintCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.DefaultPath(cfgPath)
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	c := config.Default()
	if initBaseURL != "" {
		c.API.BaseURL = initBaseURL
	}
	if !initYes {
		if err := promptConfig(c); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api.base_url is required (pass --base-url or answer the prompt)")
	}

	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote config to %s\n", path)
	return nil
}

// promptConfig asks for the settings most users change and writes the
// answers into c.
func promptConfig(c *config.Config) error {
	pageSize := strconv.Itoa(c.Filters.PageSize)
	debounce := strconv.Itoa(c.Filters.PreviewDebounceMS)
	sortOpts := make([]huh.Option[string], 0, len(filter.Sorts))
	for _, s := range filter.Sorts {
		sortOpts = append(sortOpts, huh.NewOption(s.Label(), string(s)))
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Data Source API base URL").
				Placeholder("https://api.example.com/v1").
				Value(&c.API.BaseURL).
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
						return errors.New("must start with http:// or https://")
					}
					return nil
				}),
			huh.NewInput().
				Title("Environment variable holding the API token").
				Value(&c.API.TokenEnv),
			huh.NewInput().
				Title("Data directory").
				Value(&c.General.DataRoot),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gifts per page").
				Value(&pageSize).
				Validate(positiveInt),
			huh.NewInput().
				Title("Preview delay (ms)").
				Description("Quiet period before the filter sheet re-counts").
				Value(&debounce).
				Validate(positiveInt),
			huh.NewSelect[string]().
				Title("Default sort").
				Options(sortOpts...).
				Value(&c.Filters.DefaultSort),
			huh.NewConfirm().
				Title("Compact gallery (hide prices)?").
				Value(&c.UI.Compact),
		),
	).Run()
	if err != nil {
		return err
	}
	c.Filters.PageSize, _ = strconv.Atoi(pageSize)
	c.Filters.PreviewDebounceMS, _ = strconv.Atoi(debounce)
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return errors.New("enter a whole number greater than zero")
	}
	return nil
}
