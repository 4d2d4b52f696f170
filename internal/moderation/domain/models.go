package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusInReview JobStatus = "in_review"
	JobStatusApproved JobStatus = "approved"
	JobStatusRejected JobStatus = "rejected"
)

// IsTerminal reports whether the job carries a final verdict.
func IsTerminal(status JobStatus) bool {
	return status == JobStatusApproved || status == JobStatusRejected
}

type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRejected Verdict = "rejected"
)

// Job tracks one media item through review. Attempts counts dispatches to
// the external reviewer; after the budget is spent the job parks at
// in_review and waits for a manual verdict.
type Job struct {
	ID            snowflake.ID   `json:"id" gorm:"primaryKey"`
	PostID        snowflake.ID   `json:"post_id" gorm:"not null;index"`
	MediaURL      string         `json:"media_url" gorm:"type:text;not null"`
	SubmitterID   snowflake.ID   `json:"submitter_id" gorm:"not null"`
	Status        JobStatus      `json:"status" gorm:"type:text;not null;index"`
	Attempts      int            `json:"attempts" gorm:"not null"`
	NextAttemptAt time.Time      `json:"next_attempt_at" gorm:"not null;index"`
	Result        datatypes.JSON `json:"result"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"not null"`
}

func (Job) TableName() string { return "moderation_jobs" }

type Service interface {
	// Enqueue registers a review job and hides the post until a verdict
	// lands. It never waits for the reviewer.
	Enqueue(ctx context.Context, postID snowflake.ID, mediaURL string, submitterID snowflake.ID) (*Job, error)

	Get(ctx context.Context, jobID snowflake.ID) (*Job, error)

	// VerifyCallback checks the reviewer's HMAC signature over the raw
	// callback body.
	VerifyCallback(payload []byte, signature string) error

	// Resolve applies a terminal verdict. A job already carrying the same
	// verdict is returned unchanged; a conflicting verdict is rejected.
	Resolve(ctx context.Context, jobID snowflake.ID, verdict Verdict, details []byte) (*Job, error)

	// Dispatch hands queued jobs to the external reviewer, retrying with
	// backoff up to the attempt budget.
	Dispatch(ctx context.Context, batchSize int) (int, error)
}
