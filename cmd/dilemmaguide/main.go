package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/japaniel/dilemmaguide/pkg/browse"
	"github.com/japaniel/dilemmaguide/pkg/config"
	"github.com/japaniel/dilemmaguide/pkg/db"
	"github.com/japaniel/dilemmaguide/pkg/dilemma"
	"github.com/japaniel/dilemmaguide/pkg/ingest"
	"github.com/japaniel/dilemmaguide/pkg/logging"
	"github.com/japaniel/dilemmaguide/pkg/render"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every subcommand.
type app struct {
	configPath string
	dbPath     string
	dataPath   string
	plain      bool
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:     "dilemmaguide",
		Short:   "Look up dilemma outcomes by dilemma or map name",
		Version: dilemma.Version(),
		Long: `dilemmaguide searches a collection of explorers' dilemma records.

Type part of a dilemma name or a map name to see every option that was
recorded for it and what happened. Run without arguments for the
interactive search screen.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBrowse(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a YAML config file (default "+config.DefaultPath+" if present)")
	pf.StringVar(&a.dbPath, "db", "", "Path to the SQLite database")
	pf.StringVar(&a.dataPath, "data", "", "Search this data export (yaml, json, csv, html) instead of the database")
	pf.BoolVar(&a.plain, "plain", false, "Disable colors and borders")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(a.searchCmd(), a.importCmd(), a.browseCmd())
	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = a.dbPath
	}
	if flags.Changed("data") {
		cfg.DataPath = a.dataPath
	}
	if flags.Changed("plain") {
		cfg.Plain = a.plain
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}
	a.cfg = cfg

	// The interactive screen owns the terminal; only log there when a file is configured.
	interactive := cmd.Name() == "browse" || cmd == cmd.Root()
	if interactive && cfg.Logging.OutputPath == "" {
		a.logger = zap.NewNop()
		return nil
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// loadStore picks the record source: an explicit data file, else the database
// when it holds records, else the bundled data set.
func (a *app) loadStore() (*dilemma.Store, error) {
	if a.cfg.DataPath != "" {
		src, err := ingest.NewSource(a.cfg.DataPath)
		if err != nil {
			return nil, err
		}
		records, err := ingest.Load(src)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("loaded data file", zap.String("path", src.Path), zap.Int("records", len(records)))
		return dilemma.NewStore(records)
	}

	if _, err := os.Stat(a.cfg.DBPath); err == nil {
		conn, err := db.Open(a.cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()
		records, err := db.LoadRecords(conn)
		if err != nil {
			return nil, fmt.Errorf("load records: %w", err)
		}
		if len(records) > 0 {
			a.logger.Debug("loaded database", zap.String("path", a.cfg.DBPath), zap.Int("records", len(records)))
			return dilemma.NewStore(records)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	a.logger.Debug("using bundled data set")
	return dilemma.Default()
}

func (a *app) searchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Print the dilemmas whose name or map contains the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.loadStore()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			groups := store.Search(query)
			a.logger.Info("search", zap.String("query", query), zap.Int("groups", len(groups)))

			out := cmd.OutOrStdout()
			if asJSON {
				if groups == nil {
					groups = []dilemma.DilemmaGroup{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}
			r := render.New(a.cfg.Plain)
			fmt.Fprintln(out, r.Header(store.Len()))
			fmt.Fprintln(out)
			fmt.Fprintln(out, r.Results(query, groups))
			fmt.Fprintln(out)
			fmt.Fprintln(out, r.Footer(a.cfg.FeedbackURL))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the grouped results as JSON")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [files...]",
		Short: "Append data exports (yaml, json, csv, html) to the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := make([]ingest.Source, 0, len(args))
			for _, path := range args {
				src, err := ingest.NewSource(path)
				if err != nil {
					return err
				}
				sources = append(sources, src)
			}

			conn, err := db.Open(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer conn.Close()

			ig := ingest.NewIngester(conn, a.logger)
			ig.Workers = a.cfg.Import.Workers
			ig.BatchSize = a.cfg.Import.BatchSize

			n, err := ig.Ingest(cmd.Context(), sources)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			total, err := db.CountRecords(conn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records from %d files into %s (%d total).\n", n, len(sources), a.cfg.DBPath, total)
			return nil
		},
	}
}

func (a *app) browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Open the interactive search screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBrowse(cmd)
		},
	}
}

func (a *app) runBrowse(cmd *cobra.Command) error {
	store, err := a.loadStore()
	if err != nil {
		return err
	}
	return browse.Run(store, browse.Options{
		Plain:       a.cfg.Plain,
		FeedbackURL: a.cfg.FeedbackURL,
		Logger:      a.logger,
	})
}
