package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mc-Beton/K-fun/internal/infrastructure/postgres"
)

var closeSessionsCmd = &cobra.Command{
	Use:   "close-sessions <tenant-nip>",
	Short: "Terminate a tenant's open KSeF sessions",
	Long: `Closes every OPENED/ACTIVE session of the tenant: expired sessions are
marked EXPIRED, live ones are terminated against the KSeF API. A failed
terminate is recorded on the session record but does not fail the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runCloseSessions,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "session-status <tenant-nip>",
	Short: "Query the processing state of a tenant's open KSeF sessions",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStatus,
}

func init() {
	rootCmd.AddCommand(closeSessionsCmd)
	rootCmd.AddCommand(sessionStatusCmd)
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tenant, err := postgres.NewTenantRepository(a.pool).GetByNIP(ctx, args[0])
	if err != nil {
		return err
	}
	open, err := postgres.NewSessionRepository(a.pool).GetOpenByTenant(ctx, tenant.ID)
	if err != nil {
		return err
	}
	if len(open) == 0 {
		fmt.Printf("no open sessions for tenant %s\n", tenant.NIP)
		return nil
	}

	for _, sess := range open {
		status, err := a.client.SessionStatus(ctx, sess.AccessToken, sess.ReferenceNumber)
		if err != nil {
			fmt.Printf("%s  %s  status query failed: %v\n", sess.ReferenceNumber, sess.Status, err)
			continue
		}
		fmt.Printf("%s  %s  code=%d  %s\n", sess.ReferenceNumber, sess.Status, status.ProcessingCode, status.ProcessingDescription)
	}
	return nil
}

func runCloseSessions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tenant, err := postgres.NewTenantRepository(a.pool).GetByNIP(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.sessions.CloseSessions(ctx, tenant); err != nil {
		return err
	}
	fmt.Printf("closed sessions for tenant %s\n", tenant.NIP)
	return nil
}
