// Notification feed for hub operators: KSeF connectivity transitions,
// invoice submission outcomes, lifecycle events.

package notification

import (
	"context"
	"fmt"

	"github.com/Mc-Beton/K-fun/internal/domain/entity"
	"github.com/Mc-Beton/K-fun/internal/domain/repository"
	"github.com/Mc-Beton/K-fun/pkg/logger"
)

// Service persists notifications and mirrors them into the structured log.
// Persistence failures are logged and swallowed; a notification must never
// break the operation that emitted it.
type Service struct {
	repo repository.NotificationRepository
	log  *logger.Logger
}

// NewService builds the service.
func NewService(repo repository.NotificationRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// KsefConnected records a connectivity-restored transition from the health
// probe. Implements the client's ConnectivityNotifier.
func (s *Service) KsefConnected(environment, baseURL string) {
	s.emit(entity.NotificationCategoryKsef, entity.NotificationLevelSuccess,
		"KSeF connection established",
		fmt.Sprintf("Connected to KSeF %s environment", environment),
		fmt.Sprintf(`{"environment": %q, "url": %q}`, environment, baseURL),
	)
}

// KsefConnectionFailed records a connectivity-lost transition.
func (s *Service) KsefConnectionFailed(reason, details string) {
	s.emit(entity.NotificationCategoryKsef, entity.NotificationLevelError,
		"KSeF connection failed", reason, details)
}

// InvoiceSent records a successful submission.
func (s *Service) InvoiceSent(invoiceNumber, ksefNumber string) {
	s.emit(entity.NotificationCategoryInvoice, entity.NotificationLevelSuccess,
		"Invoice sent to KSeF",
		fmt.Sprintf("Invoice %s accepted for processing, KSeF number %s", invoiceNumber, ksefNumber),
		"")
}

// InvoiceError records a failed submission.
func (s *Service) InvoiceError(invoiceNumber, errMsg string) {
	s.emit(entity.NotificationCategoryInvoice, entity.NotificationLevelError,
		"Invoice submission failed",
		fmt.Sprintf("Invoice %s: %s", invoiceNumber, errMsg),
		"")
}

// HubStarted records process startup.
func (s *Service) HubStarted(appName, env string) {
	s.emit(entity.NotificationCategoryHub, entity.NotificationLevelInfo,
		"Hub started",
		fmt.Sprintf("%s started in %s mode", appName, env),
		"")
}

func (s *Service) emit(category, level, title, message, details string) {
	event := s.log.Info()
	if level == entity.NotificationLevelError {
		event = s.log.Warn()
	}
	event.Str("category", category).Str("title", title).Msg(message)

	n := &entity.SystemNotification{
		Category: category,
		Level:    level,
		Title:    title,
		Message:  message,
		Details:  details,
	}
	if err := s.repo.Create(context.Background(), n); err != nil {
		s.log.Error().Err(err).Str("title", title).Msg("failed to persist notification")
	}
}
