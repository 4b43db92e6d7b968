package cmd

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Mc-Beton/K-fun/internal/application/notification"
	"github.com/Mc-Beton/K-fun/internal/application/submission"
	ksefapi "github.com/Mc-Beton/K-fun/internal/infrastructure/ksef"
	"github.com/Mc-Beton/K-fun/internal/infrastructure/ksef/signer"
	"github.com/Mc-Beton/K-fun/internal/infrastructure/postgres"
	"github.com/Mc-Beton/K-fun/pkg/config"
	"github.com/Mc-Beton/K-fun/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "hub",
	Short: "KSeF hub: invoice submission pipeline for the Polish national e-invoice system",
	Long: `The hub renders invoices into FA(3) XML, signs them, and submits them to
KSeF over the interactive session API.

Examples:
  # Run the hub daemon (health probing, session cache maintenance)
  hub run

  # Submit a single invoice
  hub send 7d6f... --token <initial-ksef-token>

  # Fetch the UPO confirmation for a submitted invoice
  hub upo 7d6f... --token <initial-ksef-token>`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// app holds the wired object graph shared by all commands.
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	pool         *pgxpool.Pool
	client       *ksefapi.Client
	cache        *ksefapi.SessionCache
	notifier     *notification.Service
	sessions     *submission.SessionService
	orchestrator *submission.Orchestrator
}

// newApp loads configuration and wires the full pipeline.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: "info"})

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	tenantRepo := postgres.NewTenantRepository(pool)
	sessionRepo := postgres.NewSessionRepository(pool)
	certificateRepo := postgres.NewCertificateRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	notifier := notification.NewService(notificationRepo, log)
	client := ksefapi.NewClient(&cfg.KSeF, notifier, log)
	cache := ksefapi.NewSessionCache()
	sessions := submission.NewSessionService(client, cache, sessionRepo, log)

	// Shared file certificate when configured, per-tenant records otherwise.
	var certs submission.CertificateSource
	if cfg.KSeF.CertPath != "" {
		certs, err = submission.NewFileCertificateSource(&cfg.KSeF)
		if err != nil {
			pool.Close()
			return nil, err
		}
	} else {
		certs = submission.NewRepositoryCertificateSource(certificateRepo)
	}

	orchestrator := submission.NewOrchestrator(
		invoiceRepo, tenantRepo, sessions,
		ksefapi.NewXMLBuilderService(),
		ksefapi.NewValidatorService(&cfg.KSeF, log),
		signer.NewDigitalSignatureService(),
		certs, client, notifier,
		submission.ValidationPolicy{}, log,
	)

	return &app{
		cfg:          cfg,
		log:          log,
		pool:         pool,
		client:       client,
		cache:        cache,
		notifier:     notifier,
		sessions:     sessions,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) close() {
	a.pool.Close()
}
