package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/Mc-Beton/K-fun/internal/domain"
	"github.com/Mc-Beton/K-fun/internal/domain/entity"
	"github.com/Mc-Beton/K-fun/internal/domain/repository"
	ksefapi "github.com/Mc-Beton/K-fun/internal/infrastructure/ksef"
	pkgksef "github.com/Mc-Beton/K-fun/pkg/ksef"
	"github.com/Mc-Beton/K-fun/pkg/logger"
)

// Stage identifies which part of the pipeline an error came from.
type Stage string

const (
	StagePrecondition Stage = "precondition"
	StageSession      Stage = "session"
	StageRender       Stage = "render"
	StageValidate     Stage = "validate"
	StageSign         Stage = "sign"
	StageTransport    Stage = "transport"
	StagePersist      Stage = "persist"
)

// PipelineError is the structured error surfaced by Send and FetchReceipt.
// The invoice has already been transitioned to its error state (when the
// stage calls for it) by the time the caller sees this.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("submission %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// ValidationPolicy decides what to do with structural validation findings.
// The default is to proceed: the authoritative schema may be unreachable and
// its absence must not block the business process.
type ValidationPolicy struct {
	AbortOnFindings bool
}

// InvoiceNotifier receives submission outcome events.
type InvoiceNotifier interface {
	InvoiceSent(invoiceNumber, ksefNumber string)
	InvoiceError(invoiceNumber, errMsg string)
}

// Orchestrator runs the submission pipeline: session, render, validate,
// sign, transmit, persist. It owns the invoice status state machine; no
// other component mutates invoice status.
type Orchestrator struct {
	invoices  repository.InvoiceRepository
	tenants   repository.TenantRepository
	sessions  *SessionService
	builder   *ksefapi.XMLBuilderService
	validator *ksefapi.ValidatorService
	signer    pkgksef.Signer
	certs     CertificateSource
	client    ksefapi.API
	notifier  InvoiceNotifier
	policy    ValidationPolicy
	log       *logger.Logger
}

// NewOrchestrator wires the pipeline. notifier may be nil.
func NewOrchestrator(
	invoices repository.InvoiceRepository,
	tenants repository.TenantRepository,
	sessions *SessionService,
	builder *ksefapi.XMLBuilderService,
	validator *ksefapi.ValidatorService,
	sgn pkgksef.Signer,
	certs CertificateSource,
	client ksefapi.API,
	notifier InvoiceNotifier,
	policy ValidationPolicy,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		invoices:  invoices,
		tenants:   tenants,
		sessions:  sessions,
		builder:   builder,
		validator: validator,
		signer:    sgn,
		certs:     certs,
		client:    client,
		notifier:  notifier,
		policy:    policy,
		log:       log,
	}
}

// Send submits an invoice to KSeF and returns the updated invoice on
// success. Precondition failures reject before any
// side effect; every later failure transitions the invoice to the error
// state with the message recorded, then returns a *PipelineError naming the
// failed stage. A retry re-runs the whole pipeline from the start.
func (o *Orchestrator) Send(ctx context.Context, invoiceID, initialToken string) (*entity.Invoice, error) {
	inv, err := o.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, &PipelineError{Stage: StagePrecondition, Err: err}
	}
	if inv.Status == entity.InvoiceStatusSent {
		// Guarded, not idempotent: a repeat send is a caller bug.
		return nil, &PipelineError{Stage: StagePrecondition, Err: domain.ErrAlreadySent}
	}

	tenant, err := o.tenants.GetByID(ctx, inv.TenantID)
	if err != nil {
		return nil, &PipelineError{Stage: StagePrecondition, Err: err}
	}
	if !tenant.Active {
		return nil, &PipelineError{Stage: StagePrecondition, Err: domain.ErrTenantInactive}
	}
	if !pkgksef.ValidNIP(tenant.NIP) {
		return nil, &PipelineError{Stage: StagePrecondition, Err: fmt.Errorf("tenant NIP %q: %w", tenant.NIP, domain.ErrInvalidInput)}
	}

	o.log.Info().Str("invoice", inv.InvoiceNumber).Str("tenant", tenant.NIP).Msg("starting invoice submission")

	token, err := o.sessions.TokenFor(ctx, tenant, initialToken)
	if err != nil {
		return nil, o.markError(ctx, inv, StageSession, err)
	}

	xmlBytes, err := o.builder.Build(&ksefapi.InvoiceBuildContext{Invoice: inv, Tenant: tenant})
	if err != nil {
		return nil, o.markError(ctx, inv, StageRender, err)
	}
	if !o.validator.IsWellFormed(xmlBytes) {
		return nil, o.markError(ctx, inv, StageRender, fmt.Errorf("rendered document is not well-formed XML"))
	}
	inv.XMLContent = string(xmlBytes)

	// Findings are advisory. The policy decides whether they block; the
	// default is to log and proceed.
	if res := o.validator.Validate(xmlBytes); !res.OK {
		o.log.Warn().Str("invoice", inv.InvoiceNumber).Strs("findings", res.Findings).Msg("invoice failed structural validation")
		if o.policy.AbortOnFindings {
			return nil, o.markError(ctx, inv, StageValidate, fmt.Errorf("validation findings: %v", res.Findings))
		}
	}

	cert, err := o.certs.CertificateFor(ctx, tenant.ID)
	if err != nil {
		return nil, o.markError(ctx, inv, StageSign, err)
	}
	signed, err := o.signer.Sign(xmlBytes, cert)
	if err != nil {
		return nil, o.markError(ctx, inv, StageSign, err)
	}
	inv.SignedXML = string(signed)

	resp, err := o.client.SendInvoice(ctx, token, signed)
	if err != nil {
		o.sessions.RecordInvoiceOutcome(ctx, tenant.ID, false)
		return nil, o.markError(ctx, inv, StageTransport, err)
	}

	now := time.Now()
	inv.Status = entity.InvoiceStatusSent
	inv.KsefNumber = resp.ElementReferenceNumber
	inv.ReferenceNumber = resp.ReferenceNumber
	inv.SentToKsefAt = &now
	inv.ErrorMessage = ""
	if err := o.invoices.Update(ctx, inv); err != nil {
		return nil, &PipelineError{Stage: StagePersist, Err: err}
	}

	o.sessions.RecordInvoiceOutcome(ctx, tenant.ID, true)
	if o.notifier != nil {
		o.notifier.InvoiceSent(inv.InvoiceNumber, inv.KsefNumber)
	}
	o.log.Info().Str("invoice", inv.InvoiceNumber).Str("ksef_number", inv.KsefNumber).Msg("invoice sent to KSeF")
	return inv, nil
}

// FetchReceipt retrieves and stores the UPO for a submitted invoice and
// returns its content.
func (o *Orchestrator) FetchReceipt(ctx context.Context, invoiceID, initialToken string) (string, error) {
	inv, err := o.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return "", &PipelineError{Stage: StagePrecondition, Err: err}
	}
	if inv.KsefNumber == "" {
		return "", &PipelineError{Stage: StagePrecondition, Err: domain.ErrNotSubmitted}
	}

	tenant, err := o.tenants.GetByID(ctx, inv.TenantID)
	if err != nil {
		return "", &PipelineError{Stage: StagePrecondition, Err: err}
	}

	token, err := o.sessions.TokenFor(ctx, tenant, initialToken)
	if err != nil {
		return "", o.markError(ctx, inv, StageSession, err)
	}

	ref := inv.ReferenceNumber
	if ref == "" {
		ref = inv.KsefNumber
	}
	resp, err := o.client.GetUpo(ctx, token, ref)
	if err != nil {
		return "", o.markError(ctx, inv, StageTransport, err)
	}

	inv.UpoContent = resp.Upo
	if err := o.invoices.Update(ctx, inv); err != nil {
		return "", &PipelineError{Stage: StagePersist, Err: err}
	}
	o.log.Info().Str("invoice", inv.InvoiceNumber).Msg("UPO stored")
	return resp.Upo, nil
}

// markError records the failure on the invoice before the caller sees it, so
// persisted state and the returned error are consistent.
func (o *Orchestrator) markError(ctx context.Context, inv *entity.Invoice, stage Stage, cause error) error {
	inv.Status = entity.InvoiceStatusError
	inv.ErrorMessage = cause.Error()
	if err := o.invoices.Update(ctx, inv); err != nil {
		o.log.Error().Err(err).Str("invoice", inv.InvoiceNumber).Msg("failed to record invoice error state")
	}
	if o.notifier != nil {
		o.notifier.InvoiceError(inv.InvoiceNumber, cause.Error())
	}
	return &PipelineError{Stage: stage, Err: cause}
}
