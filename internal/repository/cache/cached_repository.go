package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Nazarious-ucu/newsletter-signup-api/internal/metrics"
	"github.com/Nazarious-ucu/newsletter-signup-api/internal/models"
)

const keyPrefix = "subscriber:"

type store interface {
	GetByEmail(ctx context.Context, email string) (models.Subscriber, error)
	GetByToken(ctx context.Context, token string) (models.Subscriber, error)
	Create(ctx context.Context, sub models.Subscriber) error
	ReissueToken(ctx context.Context, email, token string, issuedAt time.Time, preferences []string) error
	MarkValidated(ctx context.Context, token string, at time.Time) (bool, error)
	UpdatePreferences(ctx context.Context, email string, preferences []string, at time.Time) (bool, error)
	Ping(ctx context.Context) error
}

type subscriberCache interface {
	Set(ctx context.Context, key string, value models.Subscriber) error
	Get(ctx context.Context, key string) (models.Subscriber, error)
	Del(ctx context.Context, key string) error
}

// CachedRepository is a read-through cache over email lookups. Token lookups
// always hit the store: a token is single-use and must never be served stale.
// Every mutation drops the email key before the store result is returned.
type CachedRepository struct {
	next  store
	cache subscriberCache
	log   zerolog.Logger
	m     *metrics.Metrics
}

func NewCachedRepository(
	next store,
	cache subscriberCache,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *CachedRepository {
	logger = logger.With().Str("component", "CachedRepository").Logger()
	return &CachedRepository{next: next, cache: cache, log: logger, m: m}
}

func (r *CachedRepository) GetByEmail(ctx context.Context, email string) (models.Subscriber, error) {
	cached, err := r.cache.Get(ctx, keyPrefix+email)
	if err == nil {
		r.m.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		r.m.CacheLookupsTotal.WithLabelValues("error").Inc()
		r.log.Warn().Err(err).Ctx(ctx).Msg("cache lookup failed, falling through to store")
	} else {
		r.m.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	sub, err := r.next.GetByEmail(ctx, email)
	if err != nil {
		return models.Subscriber{}, err
	}

	if err := r.cache.Set(ctx, keyPrefix+email, sub); err != nil {
		r.log.Warn().Err(err).Ctx(ctx).Msg("failed to cache subscriber")
	}
	return sub, nil
}

func (r *CachedRepository) GetByToken(ctx context.Context, token string) (models.Subscriber, error) {
	return r.next.GetByToken(ctx, token)
}

func (r *CachedRepository) Create(ctx context.Context, sub models.Subscriber) error {
	err := r.next.Create(ctx, sub)
	r.invalidate(ctx, sub.Email)
	return err
}

func (r *CachedRepository) ReissueToken(
	ctx context.Context,
	email, token string,
	issuedAt time.Time,
	preferences []string,
) error {
	err := r.next.ReissueToken(ctx, email, token, issuedAt, preferences)
	r.invalidate(ctx, email)
	return err
}

func (r *CachedRepository) MarkValidated(
	ctx context.Context,
	token string,
	at time.Time,
) (bool, error) {
	// The token alone does not name the cache key, so resolve the email
	// before the update clears the token fields.
	sub, lookupErr := r.next.GetByToken(ctx, token)

	won, err := r.next.MarkValidated(ctx, token, at)
	if lookupErr == nil {
		r.invalidate(ctx, sub.Email)
	}
	return won, err
}

func (r *CachedRepository) UpdatePreferences(
	ctx context.Context,
	email string,
	preferences []string,
	at time.Time,
) (bool, error) {
	ok, err := r.next.UpdatePreferences(ctx, email, preferences, at)
	r.invalidate(ctx, email)
	return ok, err
}

func (r *CachedRepository) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

func (r *CachedRepository) invalidate(ctx context.Context, email string) {
	if err := r.cache.Del(ctx, keyPrefix+email); err != nil {
		r.log.Warn().Err(err).Ctx(ctx).Str("email", email).Msg("failed to invalidate cache entry")
	}
}
