package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/edusocial/edusocial/internal/clock"
	"github.com/edusocial/edusocial/internal/config"
	"github.com/edusocial/edusocial/internal/metrics"
	"github.com/edusocial/edusocial/internal/moderation/domain"
	"github.com/edusocial/edusocial/internal/moderation/reviewer"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Config   config.Config
	Clock    clock.Clock
	Reviewer reviewer.Client
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	cfg      config.ModerationConfig
	clock    clock.Clock
	reviewer reviewer.Client
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("moderation.service"),
		genID:    p.GenID,
		cfg:      p.Config.Moderation,
		clock:    p.Clock,
		reviewer: p.Reviewer,
		metrics:  p.Metrics,
	}
}

func (s *Service) Enqueue(ctx context.Context, postID snowflake.ID, mediaURL string, submitterID snowflake.ID) (*domain.Job, error) {
	if postID == 0 {
		return nil, domain.ErrInvalidPost
	}
	mediaURL = strings.TrimSpace(mediaURL)
	if mediaURL == "" {
		return nil, domain.ErrInvalidMediaURL
	}

	now := s.clock.Now().UTC()
	job := &domain.Job{
		ID:            s.genID.Generate(),
		PostID:        postID,
		MediaURL:      mediaURL,
		SubmitterID:   submitterID,
		Status:        domain.JobStatusQueued,
		Attempts:      0,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		// Post stays hidden until a verdict lands.
		return tx.Exec(`
			INSERT INTO posts (id, visible, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET visible = ?, updated_at = ?
		`, postID, false, now, false, now).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("moderation job enqueued",
		zap.String("job_id", job.ID.String()),
		zap.String("post_id", postID.String()),
	)
	return job, nil
}

func (s *Service) Get(ctx context.Context, jobID snowflake.ID) (*domain.Job, error) {
	return s.find(ctx, s.db, jobID)
}

func (s *Service) find(ctx context.Context, tx *gorm.DB, jobID snowflake.ID) (*domain.Job, error) {
	var job domain.Job
	res := tx.WithContext(ctx).Raw(`
		SELECT id, post_id, media_url, submitter_id, status, attempts, next_attempt_at, result, created_at, updated_at
		FROM moderation_jobs WHERE id = ?
	`, jobID).Scan(&job)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (s *Service) VerifyCallback(payload []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" || s.cfg.CallbackSecret == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.CallbackSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (s *Service) Resolve(ctx context.Context, jobID snowflake.ID, verdict domain.Verdict, details []byte) (*domain.Job, error) {
	var status domain.JobStatus
	switch verdict {
	case domain.VerdictApproved:
		status = domain.JobStatusApproved
	case domain.VerdictRejected:
		status = domain.JobStatusRejected
	default:
		return nil, domain.ErrInvalidVerdict
	}

	now := s.clock.Now().UTC()
	var resolved *domain.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(`
			UPDATE moderation_jobs
			SET status = ?, result = ?, updated_at = ?
			WHERE id = ? AND status IN (?, ?)
		`, status, details, now, jobID, domain.JobStatusQueued, domain.JobStatusInReview)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			current, err := s.find(ctx, tx, jobID)
			if err != nil {
				return err
			}
			// Replayed callback with the same verdict is a no-op.
			if current.Status == status {
				resolved = current
				return nil
			}
			return domain.ErrAlreadyResolved
		}

		job, err := s.find(ctx, tx, jobID)
		if err != nil {
			return err
		}
		resolved = job

		visible := status == domain.JobStatusApproved
		return tx.Exec(`
			UPDATE posts SET visible = ?, updated_at = ? WHERE id = ?
		`, visible, now, job.PostID).Error
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ModerationVerdict.WithLabelValues(string(verdict)).Inc()
	}
	s.log.Info("moderation job resolved",
		zap.String("job_id", jobID.String()),
		zap.String("verdict", string(verdict)),
	)
	return resolved, nil
}

func (s *Service) Dispatch(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 50
	}
	now := s.clock.Now().UTC()

	var jobs []domain.Job
	if err := s.db.WithContext(ctx).Raw(`
		SELECT id, post_id, media_url, submitter_id, status, attempts, next_attempt_at, result, created_at, updated_at
		FROM moderation_jobs
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC
		LIMIT ?
	`, domain.JobStatusQueued, now, batchSize).Scan(&jobs).Error; err != nil {
		return 0, err
	}

	dispatched := 0
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}
		if err := s.dispatchOne(ctx, job); err != nil {
			s.log.Warn("dispatch attempt failed",
				zap.String("job_id", job.ID.String()),
				zap.Int("attempts", job.Attempts+1),
				zap.Error(err),
			)
			continue
		}
		dispatched++
	}
	return dispatched, nil
}

func (s *Service) dispatchOne(ctx context.Context, job domain.Job) error {
	now := s.clock.Now().UTC()

	if err := s.reviewer.Submit(ctx, job.ID, job.PostID, job.MediaURL); err != nil {
		attempts := job.Attempts + 1
		if attempts >= s.cfg.MaxAttempts {
			// Budget spent. Park the job for a manual verdict instead of
			// auto-approving.
			if parkErr := s.db.WithContext(ctx).Exec(`
				UPDATE moderation_jobs
				SET status = ?, attempts = ?, updated_at = ?
				WHERE id = ? AND status = ?
			`, domain.JobStatusInReview, attempts, now, job.ID, domain.JobStatusQueued).Error; parkErr != nil {
				return parkErr
			}
			return err
		}
		next := now.Add(backoff(s.cfg.RetryBackoff, attempts))
		if updateErr := s.db.WithContext(ctx).Exec(`
			UPDATE moderation_jobs
			SET attempts = ?, next_attempt_at = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, attempts, next, now, job.ID, domain.JobStatusQueued).Error; updateErr != nil {
			return updateErr
		}
		return err
	}

	return s.db.WithContext(ctx).Exec(`
		UPDATE moderation_jobs
		SET status = ?, attempts = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, domain.JobStatusInReview, job.Attempts+1, now, job.ID, domain.JobStatusQueued).Error
}

// backoff doubles per attempt starting from base, capped at ten minutes.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return d
}
