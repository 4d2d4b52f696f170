package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/config"
	"github.com/edusocial/edusocial/internal/engagement/buffer"
	"github.com/edusocial/edusocial/internal/engagement/domain"
	"github.com/edusocial/edusocial/internal/metrics"
	"github.com/edusocial/edusocial/internal/redislock"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	flushLockKey = "engagement:flush:lock"
	trendingKey  = "engagement:trending"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Config  config.Config
	Buffer  buffer.Buffer
	Locker  redislock.Lock
	Redis   *redis.Client
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.EngagementConfig
	buffer  buffer.Buffer
	locker  redislock.Lock
	redis   *redis.Client
	metrics *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("engagement.service"),
		cfg:     p.Config.Engagement,
		buffer:  p.Buffer,
		locker:  p.Locker,
		redis:   p.Redis,
		metrics: p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, eventType domain.EventType, targetID, actorID snowflake.ID) error {
	if !domain.ValidEventType(eventType) {
		return domain.ErrInvalidType
	}
	if targetID == 0 {
		return domain.ErrInvalidTarget
	}
	if actorID == 0 {
		return domain.ErrInvalidActor
	}

	event := domain.Event{Type: eventType, TargetID: targetID, ActorID: actorID}
	return s.buffer.Add(ctx, event.Field())
}

func (s *Service) Flush(ctx context.Context, maxBatch int) (int, error) {
	if maxBatch <= 0 {
		maxBatch = s.cfg.FlushBatchSize
	}

	if s.locker != nil {
		token, ok, err := s.locker.TryLock(ctx, flushLockKey, s.cfg.LockTTL)
		if err != nil {
			return 0, err
		}
		if !ok {
			// Another instance holds the flush claim.
			return 0, nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), flushLockKey, token); err != nil {
				s.log.Warn("release flush lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	fields, err := s.buffer.Scan(ctx, maxBatch)
	if err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, nil
	}

	events := make([]domain.Event, 0, len(fields))
	for _, field := range fields {
		event, err := domain.ParseField(field)
		if err != nil {
			// Garbage fields are drained with the batch, never retried.
			s.log.Warn("dropping malformed buffer field", zap.String("field", field))
			continue
		}
		events = append(events, event)
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, event := range events {
			res := tx.Exec(`
				INSERT INTO engagement_events (type, target_id, actor_id, applied_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (type, target_id, actor_id) DO NOTHING
			`, event.Type, event.TargetID, event.ActorID, now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Already applied by an earlier flush.
				continue
			}
			if err := tx.Exec(`
				INSERT INTO engagement_counters (target_id, type, count, updated_at)
				VALUES (?, ?, 1, ?)
				ON CONFLICT (target_id, type) DO UPDATE SET count = engagement_counters.count + 1, updated_at = ?
			`, event.TargetID, event.Type, now, now).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Fields stay buffered; the next flush retries and the dedup rows
		// keep the apply idempotent.
		return 0, err
	}

	if err := s.buffer.Remove(ctx, fields...); err != nil {
		s.log.Warn("buffer cleanup failed, events will replay harmlessly", zap.Error(err))
	}
	s.invalidateTrending(ctx)

	if s.metrics != nil {
		s.metrics.FlushBatches.Inc()
		s.metrics.FlushedEvents.Add(float64(len(fields)))
		s.metrics.FlushDuration.Observe(time.Since(start).Seconds())
	}
	s.log.Info("engagement buffer flushed",
		zap.Int("fields", len(fields)),
		zap.Int("events", len(events)),
	)
	return len(fields), nil
}

func (s *Service) Trending(ctx context.Context, limit int) ([]domain.Counter, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, trendingKey).Bytes()
		if err == nil {
			var counters []domain.Counter
			if json.Unmarshal(cached, &counters) == nil && len(counters) >= limit {
				return counters[:limit], nil
			}
		}
	}

	var counters []domain.Counter
	if err := s.db.WithContext(ctx).Raw(`
		SELECT target_id, type, count, updated_at
		FROM engagement_counters
		ORDER BY count DESC, updated_at DESC
		LIMIT ?
	`, limit).Scan(&counters).Error; err != nil {
		return nil, err
	}

	if s.redis != nil {
		if encoded, err := json.Marshal(counters); err == nil {
			if err := s.redis.Set(ctx, trendingKey, encoded, s.cfg.TrendingTTL).Err(); err != nil {
				s.log.Warn("cache trending list", zap.Error(err))
			}
		}
	}
	return counters, nil
}

func (s *Service) invalidateTrending(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, trendingKey).Err(); err != nil {
		s.log.Warn("invalidate trending cache", zap.Error(err))
	}
}
