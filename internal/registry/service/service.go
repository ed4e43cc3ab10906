// Package service implements the registration and transfer workflows: the
// two-phase register (prepare, sign out of band, execute) and the
// marketplace lifecycle (verify, list, confirm sale, escrow withdrawal).
//
// The chain is the system of record for ownership and escrow. The service
// owns the off-chain ledger, the canonical payload agreement, and the
// consent signature check; it never holds owner keys and never signs on an
// owner's behalf.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	accountmodels "landledger/internal/accounts/models"
	"landledger/internal/registry/chain"
	"landledger/internal/registry/docstore"
	"landledger/internal/registry/metrics"
	"landledger/internal/registry/store/prepared"
	"landledger/internal/registry/store/property"
	"landledger/pkg/domain"
	dErrors "landledger/pkg/domain-errors"
	"landledger/pkg/platform/audit/publisher"
)

const tracerName = "landledger/registry"

// DefaultPreparedTTL bounds how long a payload hash stays signable.
const DefaultPreparedTTL = 30 * time.Minute

// AccountResolver maps wallet addresses to registered accounts. Satisfied by
// the accounts service.
type AccountResolver interface {
	ResolveByWallet(ctx context.Context, wallet domain.Address) (*accountmodels.Account, error)
}

// Service coordinates stores, the chain gateway and the document pinner.
type Service struct {
	properties property.Store
	prepared   prepared.Store
	gateway    chain.Gateway
	pinner     docstore.Pinner
	accounts   AccountResolver

	preparedTTL time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       *publisher.Publisher
	tracer      trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p *publisher.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithPreparedTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.preparedTTL = ttl
		}
	}
}

func New(
	properties property.Store,
	preparedStore prepared.Store,
	gateway chain.Gateway,
	pinner docstore.Pinner,
	accounts AccountResolver,
	opts ...Option,
) *Service {
	s := &Service{
		properties:  properties,
		prepared:    preparedStore,
		gateway:     gateway,
		pinner:      pinner,
		accounts:    accounts,
		preparedTTL: DefaultPreparedTTL,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// chainToDomain translates a gateway failure into a stable domain error code.
func chainToDomain(err error) error {
	switch chain.GetClass(err) {
	case chain.ClassRejected:
		return dErrors.Wrap(err, dErrors.CodeChainRejected, chainReason(err))
	case chain.ClassEncoding:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode chain call")
	case chain.ClassPending:
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction accepted but not yet confirmed: "+pendingTxHash(err).String())
	default:
		return dErrors.Wrap(err, dErrors.CodeChainUnavailable, "chain is unavailable, try again later")
	}
}

func chainReason(err error) string {
	var ce *chain.Error
	if asChainError(err, &ce) && ce.Reason != "" {
		return ce.Reason
	}
	return "transaction rejected by contract"
}

func pendingTxHash(err error) domain.Hash {
	var ce *chain.Error
	if asChainError(err, &ce) {
		return ce.TxHash
	}
	return ""
}

func asChainError(err error, target **chain.Error) bool {
	return errors.As(err, target)
}
