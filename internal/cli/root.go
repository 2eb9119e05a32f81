package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lepinkainen/humanlog"
	"github.com/spf13/cobra"

	"github.com/roach88/shelf/internal/backend"
	"github.com/roach88/shelf/internal/config"
)

// RootOptions holds global flags for all commands, plus the configuration
// and logger resolved from them before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	DBPath     string
	Backend    string

	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the shelf CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shelf",
		Short: "shelf - embedded record store",
		Long:  "Store images and verses in an embedded bbolt or SQLite database.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd.ErrOrStderr())
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database file (overrides store.path)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "storage backend: bolt|sqlite (overrides store.backend)")

	cmd.AddCommand(NewImagesCommand(opts))
	cmd.AddCommand(NewVersesCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve loads configuration with flag overrides and builds the logger.
func (o *RootOptions) resolve(logOut io.Writer) error {
	v := config.New()
	if o.DBPath != "" {
		v.Set("store.path", o.DBPath)
	}
	if o.Backend != "" {
		v.Set("store.backend", o.Backend)
	}
	if o.Verbose {
		v.Set("log.level", "debug")
	}

	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	o.Logger = NewLogger(logOut, cfg.Log)
	o.Logger.Debug("configuration loaded",
		"path", cfg.Store.Path,
		"backend", cfg.Store.Backend,
		"codec", cfg.Store.Codec,
		"strict", cfg.Store.Strict,
	)
	return nil
}

// NewLogger builds a human-readable or JSON slog logger writing to w.
// The level was validated with the config, so a parse failure cannot occur.
func NewLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Level)
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(humanlog.NewHandler(w, &humanlog.Options{Level: level}))
}

// log returns the resolved logger, or the process default when a command
// runs without the root's pre-run hook.
func (o *RootOptions) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// deps returns the collaborators every store opened by a command shares.
func (o *RootOptions) deps() backend.Deps {
	return backend.Deps{Logger: o.log()}
}

// formatter returns an output formatter bound to the command's stdout.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
