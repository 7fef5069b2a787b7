package svc

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/Hemasri-01/pastebin/cfg"
	"github.com/Hemasri-01/pastebin/metrics"
	"github.com/Hemasri-01/pastebin/pkg/clock"
	"github.com/Hemasri-01/pastebin/pkg/domain"
	"github.com/Hemasri-01/pastebin/svc/cache"
	"github.com/Hemasri-01/pastebin/svc/db"
	"github.com/Hemasri-01/pastebin/svc/util"
)

// Paste implements the record store operations. Every operation receives
// its expiry-reference instant from the caller; the wall clock held here
// is used only to stamp created_at, which is deliberately independent of
// the overridable "now".
type Paste struct {
	db   *db.SQLite
	lru  *cache.LRU
	rdb  *db.Redis
	cfg  *cfg.Cfg
	wall clock.Clock
	sf   singleflight.Group
}

func NewPaste(sqlDB *db.SQLite, lru *cache.LRU, rdb *db.Redis, wall clock.Clock, c *cfg.Cfg) *Paste {
	if sqlDB == nil || lru == nil || wall == nil || c == nil {
		panic("paste service: nil dependency (sqlDB, lru, wall clock, or cfg)")
	}
	return &Paste{
		db:   sqlDB,
		lru:  lru,
		rdb:  rdb,
		cfg:  c,
		wall: wall,
	}
}

func validate(params domain.CreateParams, maxSize int64) error {
	if strings.TrimSpace(params.Content) == "" {
		return domain.ErrContentRequired
	}
	if int64(len(params.Content)) > maxSize {
		return domain.ErrPasteTooLarge
	}
	if params.TTLSeconds != nil && *params.TTLSeconds < 1 {
		return domain.ErrInvalidTTL
	}
	if params.MaxViews != nil && *params.MaxViews < 1 {
		return domain.ErrInvalidMaxViews
	}
	return nil
}

// Create validates the input, allocates a fresh id, and persists exactly
// one new record. No existing record is ever touched.
func (p *Paste) Create(ctx context.Context, params domain.CreateParams) (*domain.Paste, error) {
	if err := validate(params, p.cfg.MaxPasteSize); err != nil {
		return nil, err
	}
	id, err := util.GenID(p.cfg.IDLength, func(id string) (bool, error) {
		return p.db.Exists(ctx, id)
	})
	if err != nil {
		return nil, errors.Wrap(domain.ErrIDGenerationFailed, err.Error())
	}

	paste := &domain.Paste{
		ID:        id,
		Content:   params.Content,
		CreatedAt: p.wall.Now().Truncate(time.Millisecond),
	}
	if params.TTLSeconds != nil {
		exp := params.Now.Add(time.Duration(*params.TTLSeconds) * time.Second).Truncate(time.Millisecond)
		paste.ExpiresAt = &exp
	}
	if params.MaxViews != nil {
		views := *params.MaxViews
		paste.RemainingViews = &views
	}

	if err := p.db.Create(ctx, paste); err != nil {
		return nil, errors.Wrap(err, "create paste")
	}
	p.cachePaste(ctx, paste, params.Now)
	metrics.PasteCreated.Inc()
	return paste, nil
}

// cachePaste hands unlimited-view pastes to the cache tiers. The cache
// TTL is relative to the expiry reference instant; a nil expiry caches
// without a deadline.
func (p *Paste) cachePaste(ctx context.Context, paste *domain.Paste, now time.Time) {
	if !paste.Unlimited() {
		return
	}
	var ttl time.Duration
	if paste.ExpiresAt != nil {
		ttl = paste.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return
		}
	}
	p.lru.Set(ctx, paste, ttl)
	if p.rdb != nil {
		if err := p.rdb.CachePaste(ctx, paste, ttl); err != nil {
			util.Warn().Err(err).Str("id", paste.ID).Msg("failed to cache in Redis")
		}
	}
}

// cachedLookup serves unlimited-view pastes from the cache tiers. It
// returns nil on a miss. Cache entries never carry a view budget, so a
// hit only needs the expiry check against the caller's instant.
func (p *Paste) cachedLookup(ctx context.Context, id string, now time.Time) (*domain.Paste, error) {
	if paste := p.lru.Get(ctx, id); paste != nil {
		if !paste.VisibleAt(now) {
			p.lru.Delete(id)
			if p.rdb != nil {
				p.rdb.Delete(ctx, id)
			}
			return nil, domain.ErrPasteNotFound
		}
		metrics.CacheHits.Inc()
		return paste, nil
	}
	if p.rdb != nil {
		if paste, err := p.rdb.GetPaste(ctx, id); err == nil && paste != nil {
			if !paste.VisibleAt(now) {
				p.rdb.Delete(ctx, id)
				return nil, domain.ErrPasteNotFound
			}
			metrics.CacheHits.Inc()
			if paste.ExpiresAt != nil {
				p.lru.Set(ctx, paste, paste.ExpiresAt.Sub(now))
			} else {
				p.lru.Set(ctx, paste, 0)
			}
			return paste, nil
		}
	}
	metrics.CacheMisses.Inc()
	return nil, nil
}

func toView(paste *domain.Paste) *domain.View {
	return &domain.View{
		Content:        paste.Content,
		RemainingViews: paste.RemainingViews,
		ExpiresAt:      paste.ExpiresAt,
	}
}

// Consume is the consuming fetch: for view-limited pastes the expiry
// check, view check, and decrement run as one atomic statement in the
// store, so concurrent consumers of the same id cannot double-spend a
// view. Unlimited pastes are served without mutation, possibly from
// cache. Missing, expired, and exhausted all come back as
// ErrPasteNotFound.
func (p *Paste) Consume(ctx context.Context, id string, now time.Time) (*domain.View, error) {
	paste, err := p.cachedLookup(ctx, id, now)
	if err != nil {
		metrics.PasteUnavailable.Inc()
		return nil, err
	}
	if paste != nil {
		metrics.PasteConsumed.Inc()
		return toView(paste), nil
	}

	view, err := p.db.ConsumeView(ctx, id, now)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			metrics.PasteUnavailable.Inc()
			return nil, domain.ErrPasteNotFound
		}
		return nil, errors.Wrap(err, "consume paste")
	}
	metrics.PasteConsumed.Inc()
	return view, nil
}

// Peek applies the same visibility rules as Consume but never mutates
// the view budget. Concurrent lookups of the same id collapse into one
// database read; that is safe precisely because peek does not write.
func (p *Paste) Peek(ctx context.Context, id string, now time.Time) (*domain.View, error) {
	paste, err := p.cachedLookup(ctx, id, now)
	if err != nil {
		metrics.PasteUnavailable.Inc()
		return nil, err
	}
	if paste == nil {
		res, err, _ := p.sf.Do("get:"+id, func() (interface{}, error) {
			return p.db.Get(ctx, id)
		})
		if err != nil {
			if errors.Is(err, domain.ErrPasteNotFound) {
				metrics.PasteUnavailable.Inc()
				return nil, domain.ErrPasteNotFound
			}
			return nil, errors.Wrap(err, "peek paste")
		}
		paste = res.(*domain.Paste)
		if !paste.VisibleAt(now) {
			metrics.PasteUnavailable.Inc()
			return nil, domain.ErrPasteNotFound
		}
		p.cachePaste(ctx, paste, now)
	}
	metrics.PastePeeked.Inc()
	return toView(paste), nil
}

var (
	cleanerOnce    sync.Once
	cleanerRunning atomic.Bool
)

// StartCleaner launches the background garbage collector for logically
// deleted rows. The read paths never rely on it.
func StartCleaner(ctx context.Context, sqlDB *db.SQLite, wall clock.Clock, interval time.Duration) error {
	if cleanerRunning.Load() {
		return errors.New("cleaner already running")
	}
	cleanerOnce.Do(func() {
		cleanerRunning.Store(true)
		go runCleaner(ctx, sqlDB, wall, interval)
	})
	return nil
}

func runCleaner(ctx context.Context, sqlDB *db.SQLite, wall clock.Clock, interval time.Duration) {
	defer cleanerRunning.Store(false)
	cleanupRequestID := util.NewRequestID()
	ctx = util.SetRequestID(ctx, cleanupRequestID)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	util.Info().
		Str("request_id", cleanupRequestID).
		Dur("interval", interval).
		Msg("cleanup worker started")
	for {
		select {
		case <-ctx.Done():
			util.Info().
				Str("request_id", cleanupRequestID).
				Msg("cleanup worker shutting down")
			return
		case <-ticker.C:
			metrics.PruneCycles.Inc()
			deleted, err := sqlDB.CleanupExpired(ctx, wall.Now())
			if err != nil {
				util.Error().
					Err(err).
					Str("request_id", util.GetRequestID(ctx)).
					Msg("cleanup failed")
			} else if deleted > 0 {
				metrics.PastesPruned.Add(float64(deleted))
				util.Info().
					Int("deleted", deleted).
					Str("request_id", util.GetRequestID(ctx)).
					Msg("cleanup completed")
			}
		}
	}
}
