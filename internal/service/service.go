package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"hhmart/billing/internal/billing"
	"hhmart/billing/internal/cache"
	"hhmart/billing/internal/cart"
	"hhmart/billing/internal/domain"
	"hhmart/billing/internal/logger"
	"hhmart/billing/internal/receipt"
	"hhmart/billing/internal/store"
)

var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// Holds overrides where parked sessions live; the repository is used
	// when nil.
	Holds    store.HoldStore
	Receipts *receipt.Renderer
	Cache    cache.DashboardCache
	CacheTTL time.Duration
	Logger   *zap.Logger
}

type Service struct {
	repo     store.Repository
	holds    store.HoldStore
	sessions *cart.Registry
	receipts *receipt.Renderer
	cache    cache.DashboardCache
	cacheTTL time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	s := &Service{
		repo:     repo,
		holds:    opts.Holds,
		sessions: cart.NewRegistry(),
		receipts: opts.Receipts,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		log:      logger.OrNop(opts.Logger),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.holds == nil {
		s.holds = repo
	}
	if s.receipts == nil {
		s.receipts = receipt.NewRenderer("", 0)
	}
	if s.cache == nil {
		s.cache = cache.NoopDashboardCache{}
	}
	return s
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.Username
	}
	return "system"
}

// storeErr passes taxonomy errors through and wraps everything else as a
// persistence failure.
func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrConflict) {
		return err
	}
	return billing.Persistence(op, err)
}

func normalizeTerminal(terminalID string) (string, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return "", billing.Invalid("terminal_id", "terminal id is required")
	}
	if len(terminalID) > 64 {
		return "", billing.Invalid("terminal_id", "terminal id is too long")
	}
	return terminalID, nil
}

func defaultString(value string, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
