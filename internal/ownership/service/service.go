// Package service implements the ownership and claim-transfer engine: role
// checks, direct transfers, claim-code minting and redemption, the
// administrator-reviewed claim workflow, and the transfer-history views.
//
// Every mutating operation runs inside a single store transaction; the ledger
// row is appended in the same transaction as the ownership mutation it
// describes, so readers never observe one without the other.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"clubhub/internal/audit"
	"clubhub/internal/directory"
	"clubhub/internal/ownership/limiter"
	"clubhub/internal/ownership/metrics"
	"clubhub/internal/ownership/models"
	"clubhub/internal/ownership/registry"
	"clubhub/internal/ownership/store"
	dErrors "clubhub/pkg/domain-errors"
	"clubhub/pkg/platform/sentinel"
)

var tracer = otel.Tracer("clubhub/internal/ownership/service")

// AuditPublisher captures structured audit events for mutating operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates ownership state. No ownership state is cached
// in-process: every authorization check re-reads current state.
type Service struct {
	store    store.Store
	tx       store.Tx
	users    directory.Directory
	registry *registry.Registry

	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    AuditPublisher
	attempts limiter.AttemptLimiter
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// WithAttemptLimiter bounds claim-code guesses per (entity, claimer).
func WithAttemptLimiter(l limiter.AttemptLimiter) Option {
	return func(s *Service) { s.attempts = l }
}

// WithTx sets the transactional boundary. Defaults to the in-memory
// coarse lock; production wiring passes store.NewSQLTx.
func WithTx(tx store.Tx) Option {
	return func(s *Service) { s.tx = tx }
}

// New constructs a Service.
func New(st store.Store, users directory.Directory, reg *registry.Registry, opts ...Option) *Service {
	s := &Service{store: st, users: users, registry: reg}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = store.NewInMemoryTx()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// runInTx opens the transaction boundary and translates infrastructure
// failures into the retryable storage error kind.
func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.tx.RunInTx(ctx, fn); err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return dErrors.Wrap(err, dErrors.CodeStorage, "transaction could not complete")
		}
		return err
	}
	return nil
}

// wrapStoreErr translates sentinel errors from stores into coded domain
// errors. Domain errors pass through unmodified; anything else is a storage
// failure the caller may retry from scratch.
func wrapStoreErr(err error, subject string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, subject+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, subject+" conflict")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeStorage, "storage unavailable")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeStorage, "storage operation failed")
}

// findUser resolves a directory user, mapping a missing record to NotFound.
func (s *Service) findUser(ctx context.Context, userID int64, subject string) (*directory.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, wrapStoreErr(err, subject)
	}
	return u, nil
}

// requireSystemAdmin resolves the user and fails Forbidden unless the
// directory marks them as a platform administrator.
func (s *Service) requireSystemAdmin(ctx context.Context, userID int64, subject string) (*directory.User, error) {
	u, err := s.findUser(ctx, userID, subject)
	if err != nil {
		return nil, err
	}
	if !u.IsSystemAdmin {
		return nil, dErrors.New(dErrors.CodeForbidden, "system administrator privilege required")
	}
	return u, nil
}

// displayName resolves a user's display name for view enrichment. Missing
// users (deleted accounts) enrich to an empty name rather than failing the
// read.
func (s *Service) displayName(ctx context.Context, userID int64) string {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return ""
	}
	return u.DisplayName
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "audit event could not be recorded")
	}
	return nil
}

func (s *Service) incrementTransfers(transferType models.TransferType) {
	if s.metrics != nil {
		s.metrics.IncrementTransfers(string(transferType))
	}
}
