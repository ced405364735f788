package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"furnidesk/backend/internal/cache"
	"furnidesk/backend/internal/domain"
	"furnidesk/backend/internal/observability"
	"furnidesk/backend/internal/ordlock"
	"furnidesk/backend/internal/store"
	"furnidesk/backend/internal/xid"
)

// ErrValidation marks a request rejected before it reached the store.
var ErrValidation = errors.New("validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

const (
	StageLock           = "lock"
	StageLoad           = "load"
	StageUpdateItems    = "update_items"
	StageInsertItems    = "insert_items"
	StageDeleteItems    = "delete_items"
	StageLoadFinalItems = "load_final_items"
	StageUpdateTotals   = "update_totals"
	StageCommit         = "commit"
)

// StageError identifies the step of an order write that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// AllowEmptyItems permits an update that removes every line item.
	AllowEmptyItems bool
	// StrictTransitions rejects status changes the state machine does not allow.
	StrictTransitions bool
	CacheTTL          time.Duration
	// LockWait bounds how long a write waits for the per-order lock.
	LockWait time.Duration
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

type Service struct {
	repo    store.Repository
	locker  ordlock.Locker
	cache   cache.OrderCache
	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
	opts    Options
	now     func() time.Time
}

func New(repo store.Repository, locker ordlock.Locker, orderCache cache.OrderCache, metrics *observability.Metrics, logger *zap.Logger, opts Options) *Service {
	if locker == nil {
		locker = ordlock.NewLocalLocker()
	}
	if orderCache == nil {
		orderCache = cache.NoopOrderCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}

	return &Service{
		repo:    repo,
		locker:  locker,
		cache:   orderCache,
		metrics: metrics,
		tracer:  opts.TracerProvider.Tracer(observability.ScopeName),
		logger:  logger.Named("service"),
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) logAudit(ctx context.Context, orderID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		OrderID:       orderID,
		ActorUsername: actor.Username,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

// storeInCache writes a committed order through to the cache. When the write
// fails the entry is dropped so the next read goes to the store.
func (s *Service) storeInCache(ctx context.Context, order *domain.Order) {
	err := s.cache.Set(ctx, order, s.opts.CacheTTL)
	if err == nil {
		return
	}
	s.logger.Warn("order cache write failed", zap.String("order_id", order.ID), zap.Error(err))
	if err := s.cache.Invalidate(ctx, order.ID); err != nil {
		s.logger.Warn("failed to invalidate order cache", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *Service) lock(ctx context.Context, orderID string) (ordlock.Release, error) {
	if s.opts.LockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.LockWait)
		defer cancel()
	}
	release, err := s.locker.Lock(ctx, ordlock.Key(orderID))
	if err != nil {
		return nil, &StageError{Stage: StageLock, Err: err}
	}
	return release, nil
}

func (s *Service) release(orderID string, release ordlock.Release) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		s.logger.Warn("failed to release order lock", zap.String("order_id", orderID), zap.Error(err))
	}
}
