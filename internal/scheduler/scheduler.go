package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/clock"
	engagementdomain "github.com/edusocial/edusocial/internal/engagement/domain"
	moderationdomain "github.com/edusocial/edusocial/internal/moderation/domain"
	orderdomain "github.com/edusocial/edusocial/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	EngagementSvc engagementdomain.Service
	ModerationSvc moderationdomain.Service
	OrderSvc      orderdomain.Service
	Config        Config `optional:"true"`
}

type Scheduler struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	engagementSvc engagementdomain.Service
	moderationSvc moderationdomain.Service
	orderSvc      orderdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.EngagementSvc == nil || p.ModerationSvc == nil || p.OrderSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler"),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		engagementSvc: p.EngagementSvc,
		moderationSvc: p.ModerationSvc,
		orderSvc:      p.OrderSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	err := fn(ctx)
	elapsed := time.Since(start)

	if err == nil {
		s.log.Debug("job finished",
			zap.String("job", name),
			zap.Duration("elapsed", elapsed),
		)
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"flush_engagement", s.FlushEngagementJob},
		{"dispatch_moderation", s.DispatchModerationJob},
		{"expire_orders", s.ExpireOrdersJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) FlushEngagementJob(ctx context.Context) error {
	flushed, err := s.engagementSvc.Flush(ctx, s.cfg.FlushBatchSize)
	if err != nil {
		return err
	}
	if flushed > 0 {
		s.log.Info("engagement flush completed", zap.Int("flushed", flushed))
	}
	return nil
}

func (s *Scheduler) DispatchModerationJob(ctx context.Context) error {
	dispatched, err := s.moderationSvc.Dispatch(ctx, s.cfg.DispatchBatchSize)
	if err != nil {
		return err
	}
	if dispatched > 0 {
		s.log.Info("moderation jobs dispatched", zap.Int("dispatched", dispatched))
	}
	return nil
}

// ExpireOrdersJob cancels pending orders whose checkout session was
// abandoned.
func (s *Scheduler) ExpireOrdersJob(ctx context.Context) error {
	cutoff := s.clock.Now().UTC().Add(-s.cfg.PendingOrderTTL)

	var stale []struct{ ID snowflake.ID }
	if err := s.db.WithContext(ctx).Raw(`
		SELECT id FROM orders
		WHERE status = ? AND created_at < ?
		ORDER BY created_at ASC
		LIMIT ?
	`, orderdomain.OrderStatusPending, cutoff, s.cfg.DispatchBatchSize).Scan(&stale).Error; err != nil {
		return err
	}

	var jobErr error
	for _, row := range stale {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		_, err := s.orderSvc.Transition(ctx, row.ID, orderdomain.OrderStatusCancelled, orderdomain.TransitionMeta{})
		if err != nil {
			// A payment landing mid-sweep wins the race; skip quietly.
			if errors.Is(err, orderdomain.ErrInvalidTransition) || errors.Is(err, orderdomain.ErrTransitionConflict) {
				continue
			}
			jobErr = errors.Join(jobErr, err)
			continue
		}
		s.log.Info("stale pending order cancelled", zap.String("order_id", row.ID.String()))
	}
	return jobErr
}
