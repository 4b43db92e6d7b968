package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	upoToken  string
	upoOutput string
)

var upoCmd = &cobra.Command{
	Use:   "upo <invoice-id>",
	Short: "Fetch the UPO confirmation for a submitted invoice",
	Long: `Retrieves the Urzędowe Poświadczenie Odbioru (official receipt) for an
invoice that already has a KSeF number, stores it on the invoice record, and
writes the decoded XML to stdout or a file.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpo,
}

func init() {
	rootCmd.AddCommand(upoCmd)
	upoCmd.Flags().StringVar(&upoToken, "token", "", "initial KSeF token (env: KSEF_INITIAL_TOKEN)")
	upoCmd.Flags().StringVarP(&upoOutput, "output", "o", "", "output file (default: stdout)")
}

func runUpo(cmd *cobra.Command, args []string) error {
	token, err := initialToken(upoToken)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	upo, err := a.orchestrator.FetchReceipt(ctx, args[0], token)
	if err != nil {
		return err
	}

	// KSeF returns the UPO Base64-encoded; emit the decoded document when it
	// decodes cleanly, the raw payload otherwise.
	content := []byte(upo)
	if decoded, decErr := base64.StdEncoding.DecodeString(upo); decErr == nil {
		content = decoded
	}

	if upoOutput != "" {
		if err := os.WriteFile(upoOutput, content, 0o644); err != nil {
			return err
		}
		fmt.Printf("UPO written to %s\n", upoOutput)
		return nil
	}
	fmt.Println(string(content))
	return nil
}
