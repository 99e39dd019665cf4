package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change persisted scan defaults",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(store.Get(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set key=value ...",
	Short: "Change one or more settings",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := store.Get()
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", arg)
			}
			switch key {
			case "mechanism":
				settings.Mechanism = value
			case "imageDir":
				settings.ImageDir = value
			case "fileFormat":
				settings.FileFormat = value
			case "showUI":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("showUI: %w", err)
				}
				settings.ShowUI = b
			case "autoFormatOverride":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("autoFormatOverride: %w", err)
				}
				settings.AutoFormatOverride = b
			case "assemblePdf":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("assemblePdf: %w", err)
				}
				settings.AssemblePDF = b
			case "logFile":
				settings.LogFile = value
			case "logMaxSizeMb":
				n, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("logMaxSizeMb: %w", err)
				}
				settings.LogMaxSizeMB = n
			default:
				return fmt.Errorf("unknown setting %q", key)
			}
		}
		return store.Update(settings)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
