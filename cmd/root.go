package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/witanlabs/gridcmd/client"
	"github.com/witanlabs/gridcmd/config"
	"github.com/witanlabs/gridcmd/workbook"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	apiKey     string
	apiURL     string
	sheetName  string
	jsonOutput bool
	verbose    bool

	cfg    = config.Default()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "gridcmd",
	Short: "Run JSON commands against a spreadsheet and score them",
	Long: `Run structured spreadsheet commands against one worksheet of an .xlsx file.

Every command is JSON: {"function_name": "...", "parameters": {...}}. Each run
is scored: reward 1 with "Success: ..." feedback, or -1 with "Error: ...".

Commands run locally by default. With --remote, they run in a session on a
gridcmd server (see 'gridcmd serve').`,
	Version:           Version,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output raw JSON instead of human-formatted summaries")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&sheetName, "sheet", "", "Worksheet to read and write (env: GRIDCMD_SHEET, default: the active sheet)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "gridcmd server API key for --remote (env: GRIDCMD_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "gridcmd server URL for --remote (env: GRIDCMD_API_URL)")
}

// setup loads .env and the config file, then builds the logger.
func setup(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = loaded

	l, err := newLogger(cfg.Log.Level, verbose)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	lvl := zapcore.WarnLevel
	if level != "" {
		if err := lvl.Set(level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func workbookOptions() workbook.Options {
	if sheetName != "" {
		return workbook.Options{Sheet: sheetName}
	}
	return workbook.Options{Sheet: cfg.Workbook.Sheet}
}

func resolveAPIKey() string {
	if apiKey != "" {
		return apiKey
	}
	return cfg.Remote.APIKey
}

func resolveAPIURL() string {
	if apiURL != "" {
		return apiURL
	}
	if cfg.Remote.URL != "" {
		return cfg.Remote.URL
	}
	return "http://localhost:8080"
}

// newClient returns a client for the workbook at path. Without --sheet the
// file's active sheet is named explicitly, so the server's download keeps it.
func newClient(path string) *client.Client {
	c := client.New(resolveAPIURL(), resolveAPIKey(), true)
	c.Sheet = workbookOptions().Sheet
	if c.Sheet == "" {
		c.Sheet = workbook.ActiveSheet(path)
	}
	c.UserAgent = "gridcmd/" + Version
	return c
}

func Execute() error {
	return rootCmd.Execute()
}
