package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/searchgal/searchgal/internal/config"
	"github.com/searchgal/searchgal/internal/logger"
)

// app carries state shared by all subcommands.
type app struct {
	configPath string
	logLevel   string
	verbose    bool

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "searchgal",
		Short: "Search visual novel resource platforms",
		Long: `searchgal sends one query to a SearchGal API, which fans it out to many
resource platforms, and prints each platform's results as they stream in.
It can also run a relay server that exposes searches, history and VNDB
metadata over HTTP and WebSocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newSearchCmd(a),
		newServeCmd(a),
		newMockCmd(a),
		newHistoryCmd(a),
		newVNDBCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration and builds the logger. One-shot commands log
// at fallbackLevel unless a level is configured on the command line; serve
// passes "" to use the configured level and file output.
func (a *app) setup(cmd *cobra.Command, fallbackLevel string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := fallbackLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	if a.logLevel != "" {
		level = a.logLevel
	}
	if a.verbose {
		level = "debug"
	}

	logCfg := logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	}
	if fallbackLevel == "" {
		logCfg.Path = cfg.Logging.Path
		logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		logCfg.MaxBackups = cfg.Logging.MaxBackups
		logCfg.MaxAgeDays = cfg.Logging.MaxAgeDays
		logCfg.Compress = cfg.Logging.Compress
	}
	a.log = logger.New(logCfg)
	return nil
}

func (a *app) close() {
	if a.log != nil {
		_ = a.log.Close()
	}
}

func checkOutput(format string) error {
	if format != "text" && format != "yaml" {
		return fmt.Errorf("unknown output format %q, expected text or yaml", format)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "searchgal %s\n", config.Version)
	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
