package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"vivero/backend/internal/cache"
	"vivero/backend/internal/domain"
	"vivero/backend/internal/metrics"
	"vivero/backend/internal/store"
	"vivero/backend/internal/ticket"
	"vivero/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// RetryPolicy bounds how often a sale commit is repeated after transient
// storage contention. The first attempt runs at once; attempt n > 1 waits
// BaseDelay * 2^(n-2), capped at maxRetryDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

const maxRetryDelay = 30 * time.Second

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt <= 1 || p.BaseDelay <= 0 {
		return 0
	}
	wait := p.BaseDelay
	for i := 2; i < attempt; i++ {
		if wait >= maxRetryDelay/2 {
			return maxRetryDelay
		}
		wait *= 2
	}
	return min(wait, maxRetryDelay)
}

type Service struct {
	repo         store.Repository
	cache        cache.ProductCache
	stockTTL     time.Duration
	notifier     ticket.Notifier
	metrics      *metrics.Metrics
	retry        RetryPolicy
	requireNotes bool
	notifyWait   time.Duration
	terminals    *terminals
	location     *time.Location
	now          func() time.Time
}

type Option func(*Service)

func WithCache(c cache.ProductCache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
		if ttl > 0 {
			s.stockTTL = ttl
		}
	}
}

func WithNotifier(n ticket.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		if p.BaseDelay < 0 {
			p.BaseDelay = 0
		}
		s.retry = p
	}
}

// WithNotesPolicy controls whether closing a session with a critical
// variance requires notes.
func WithNotesPolicy(required bool) Option {
	return func(s *Service) { s.requireNotes = required }
}

// WithLocation sets the time zone whose calendar days bound daily reports.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func New(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		cache:        cache.NoopProductCache{},
		stockTTL:     20 * time.Second,
		notifier:     ticket.NewLogNotifier(log.Logger),
		retry:        DefaultRetryPolicy(),
		requireNotes: true,
		notifyWait:   10 * time.Second,
		terminals:    newTerminals(),
		location:     time.UTC,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}
