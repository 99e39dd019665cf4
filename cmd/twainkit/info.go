package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/twainkit/twainkit/internal/driver"
	"github.com/twainkit/twainkit/internal/engine"
	"github.com/twainkit/twainkit/internal/twain"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the default source identity and its negotiable capabilities",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	sim := driver.NewSimulator(driver.Page{Width: 850, Height: 1100, ResX: 100, ResY: 100, BitsPerPixel: 8, PixelType: twain.PixelGray})
	session, err := engine.NewSession(sim, engine.Config{Log: slog.Default()})
	if err != nil {
		return err
	}
	defer session.Close()
	if err := session.OpenDefaultSource(); err != nil {
		return err
	}

	_, identity, err := session.Send("DG_CONTROL", "DAT_IDENTITY", "MSG_GETDEFAULT", "")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "identity:", identity)

	for _, cap := range []string{
		"ICAP_XFERMECH",
		"ICAP_PIXELTYPE",
		"CAP_XFERCOUNT",
		"CAP_DEVICEONLINE",
		"CAP_UICONTROLLABLE",
		"CAP_PAPERDETECTABLE",
	} {
		_, out, err := session.Send("DG_CONTROL", "DAT_CAPABILITY", "MSG_GETCURRENT", cap)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: unsupported\n", cap)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}
