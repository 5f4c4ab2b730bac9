package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"feedpos/backend/internal/cache"
	"feedpos/backend/internal/domain"
	"feedpos/backend/internal/store"
	"feedpos/backend/internal/xid"
)

// ErrForbidden is returned when the actor's role may not run an operation.
var ErrForbidden = errors.New("forbidden")

const DefaultCartTTL = 12 * time.Hour

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// SalesRecorder receives checkout outcomes for metrics.
type SalesRecorder interface {
	SaleSettled(method domain.PaymentMethod, total float64, kg float64)
	CheckoutRejected(reason string)
}

type noopRecorder struct{}

func (noopRecorder) SaleSettled(domain.PaymentMethod, float64, float64) {}
func (noopRecorder) CheckoutRejected(string) {}

type Options struct {
	CartTTL      time.Duration
	Currency     string
	BusinessName string
	Recorder     SalesRecorder
	Now          func() time.Time
	// Location is the shop's time zone. Expiry checks and business dates
	// use its calendar day. Defaults to UTC.
	Location *time.Location
}

type Service struct {
	repo         store.Repository
	carts        cache.CartStore
	logger       zerolog.Logger
	recorder     SalesRecorder
	cartTTL      time.Duration
	currency     string
	businessName string
	now          func() time.Time
	location     *time.Location
	locks        cartLocks
}

func New(repo store.Repository, carts cache.CartStore, logger zerolog.Logger, opts Options) *Service {
	if carts == nil {
		carts = cache.NewMemoryCartStore()
	}
	if opts.CartTTL <= 0 {
		opts.CartTTL = DefaultCartTTL
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if strings.TrimSpace(opts.BusinessName) == "" {
		opts.BusinessName = "Feed Store"
	}

	return &Service{
		repo:         repo,
		carts:        carts,
		logger:       logger.With().Str("component", "service").Logger(),
		recorder:     opts.Recorder,
		cartTTL:      opts.CartTTL,
		currency:     strings.TrimSpace(opts.Currency),
		businessName: strings.TrimSpace(opts.BusinessName),
		now:          opts.Now,
		location:     opts.Location,
	}
}

// localNow is the current time on the shop's wall clock.
func (s *Service) localNow() time.Time {
	return s.now().In(s.location)
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return actor, nil
}

// RecordAudit writes an audit entry for operations handled outside the
// service, such as staff management.
func (s *Service) RecordAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	s.logAudit(ctx, action, entityType, entityID, detail)
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
		s.logger.Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		from = parsed
	}
	return s.repo.ListAuditLogs(ctx, from, from.Add(24*time.Hour), limit)
}

func parseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidInput)
	}
	return parsed.UTC(), nil
}

// parseWindow reads an optional [from, to) date window. A missing to is
// the day after from; a missing from is today.
func (s *Service) parseWindow(fromRaw string, toRaw string) (time.Time, time.Time, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if strings.TrimSpace(fromRaw) != "" {
		parsed, err := parseDate(fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	to := from.Add(24 * time.Hour)
	if strings.TrimSpace(toRaw) != "" {
		parsed, err := parseDate(toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.Add(24 * time.Hour)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must not be before from", store.ErrInvalidInput)
	}
	return from, to, nil
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
