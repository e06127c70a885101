package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"giftscope/internal/api"
	"giftscope/internal/config"
	apperrors "giftscope/internal/errors"
	"giftscope/internal/logging"
	"giftscope/internal/metrics"
	"giftscope/internal/state"
)

var (
	cfgPath  string
	logLevel string
	jsonLogs bool
)

var rootCmd = &cobra.Command{
	Use:           "giftscope",
	Short:         "Browse and filter collectible gift collections",
	Long:          "giftscope filters collectible gift collections by their attributes, from the terminal or an interactive gallery.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperrors.Friendly(err).Error())
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default: $GIFTSCOPE_CONFIG or ~/.config/giftscope/config.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides logging.level)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "JSON log output")
}

func loadConfig() (*config.Config, error) {
	path := config.DefaultPath(cfgPath)
	if _, err := os.Stat(path); err != nil {
		return nil, apperrors.ConfigError("config", fmt.Sprintf("config file not found: %s", path)).WithDetails(err)
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, apperrors.ConfigError("config", err.Error()).WithDetails(err)
	}
	return c, nil
}

// session bundles what the data commands share. Close releases it and
// flushes metrics.
type session struct {
	cfg     *config.Config
	log     *logging.Logger
	db      *state.DB
	client  *api.Client
	source  *api.CachedSource
	metrics *metrics.Manager
	closers []io.Closer
}

// openSession loads config and opens the state DB and API client. Logs go to
// stderr unless quiet, in which case they go to logging.file or nowhere.
func openSession(quiet bool) (*session, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: c}
	if err := s.setupLogger(quiet); err != nil {
		return nil, err
	}
	s.metrics = metrics.New(c)
	db, err := state.Open(c)
	if err != nil {
		s.Close()
		return nil, apperrors.DatabaseError(err).WithDetails(err)
	}
	s.db = db
	client, err := api.NewClient(c, s.log, api.WithRetrier(s.metrics))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client = client
	s.source = api.NewCachedSource(client, db, c.CatalogTTL(), s.log)
	return s, nil
}

func (s *session) setupLogger(quiet bool) error {
	level := s.cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	asJSON := jsonLogs || s.cfg.Logging.Format == "json"
	if s.cfg.Logging.File.Enabled && s.cfg.Logging.File.Path != "" {
		l, closer, err := logging.NewFile(s.cfg.Logging.File.Path, level, asJSON)
		if err != nil {
			return err
		}
		s.log = l
		s.closers = append(s.closers, closer)
		return nil
	}
	if quiet {
		s.log = logging.Discard()
		return nil
	}
	s.log = logging.New(level, asJSON)
	return nil
}

func (s *session) Close() {
	if err := s.metrics.Write(); err != nil && s.log != nil {
		s.log.Warnf("write metrics: %v", err)
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.log != nil {
		_ = s.log.Sync()
	}
	for _, c := range s.closers {
		_ = c.Close()
	}
}
