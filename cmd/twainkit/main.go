// Command twainkit drives a scan session against the built-in simulated
// driver: batch scanning, raw triplet dispatch, and source inspection.
package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/twainkit/twainkit/internal/config"
)

var (
	flagDataDir string
	flagLogFile string
	flagVerbose bool

	store *config.Store
)

var rootCmd = &cobra.Command{
	Use:           "twainkit",
	Short:         "Session-oriented scanner acquisition toolkit",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if flagDataDir == "" {
			store = config.NewMemoryStore()
		} else if store, err = config.NewStore(flagDataDir); err != nil {
			return err
		}
		setupLogging(store.Get())
		return nil
	},
}

func setupLogging(settings config.Settings) {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	logFile := flagLogFile
	if logFile == "" {
		logFile = settings.LogFile
	}
	if logFile != "" {
		maxSize := settings.LogMaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    maxSize,
			MaxBackups: 3,
		})
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "twainkit")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", defaultDataDir(), "directory for persisted settings (empty for none)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "also write logs to this rotated file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}
