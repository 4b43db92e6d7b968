package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sendToken string

var sendCmd = &cobra.Command{
	Use:   "send <invoice-id>",
	Short: "Submit an invoice to KSeF",
	Long: `Runs the full submission pipeline for a draft invoice: opens (or reuses) a
session, renders the FA(3) document, validates, signs, and transmits it.
On success the invoice moves to SENT and receives its KSeF number.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendToken, "token", "", "initial KSeF token (env: KSEF_INITIAL_TOKEN)")
}

func initialToken(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("KSEF_INITIAL_TOKEN"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no KSeF token: pass --token or set KSEF_INITIAL_TOKEN")
}

func runSend(cmd *cobra.Command, args []string) error {
	token, err := initialToken(sendToken)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	inv, err := a.orchestrator.Send(ctx, args[0], token)
	if err != nil {
		return err
	}
	fmt.Printf("invoice %s sent, KSeF number %s\n", inv.InvoiceNumber, inv.KsefNumber)
	return nil
}
