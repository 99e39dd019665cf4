package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/twainkit/twainkit/internal/driver"
	"github.com/twainkit/twainkit/internal/engine"
)

var sendFlags struct {
	openSource bool
	payload    string
}

var sendCmd = &cobra.Command{
	Use:   "send DG DAT MSG",
	Short: "Dispatch one raw triplet and print the result payload",
	Long: `Dispatch one triplet against the simulated driver. Tokens are symbolic
("DG_CONTROL", "DAT_CAPABILITY", "MSG_GETCURRENT") or hex ("0x0001"); the
payload flag carries the operation's CSV argument.`,
	Args: cobra.ExactArgs(3),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendFlags.payload, "payload", "p", "", "CSV payload for the operation")
	sendCmd.Flags().BoolVar(&sendFlags.openSource, "open-source", false, "open the default source first")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	sim := driver.NewSimulator(driver.Page{Width: 850, Height: 1100, ResX: 100, ResY: 100, BitsPerPixel: 8})
	session, err := engine.NewSession(sim, engine.Config{Log: slog.Default()})
	if err != nil {
		return err
	}
	defer session.Close()

	if sendFlags.openSource {
		if err := session.OpenDefaultSource(); err != nil {
			return err
		}
	}

	rc, out, err := session.Send(args[0], args[1], args[2], sendFlags.payload)
	fmt.Fprintln(cmd.OutOrStdout(), rc)
	if out != "" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return err
}
