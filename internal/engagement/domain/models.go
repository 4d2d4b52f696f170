package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventType string

const (
	EventTypeLike EventType = "like"
	EventTypeVote EventType = "vote"
)

func ValidEventType(t EventType) bool {
	return t == EventTypeLike || t == EventTypeVote
}

// Event is one actor's engagement with a target post. The buffer field
// encoding collapses duplicates before they reach the database.
type Event struct {
	Type     EventType
	TargetID snowflake.ID
	ActorID  snowflake.ID
}

// Field encodes the event as the buffer hash field.
func (e Event) Field() string {
	return fmt.Sprintf("%s:%s:%s", e.Type, e.TargetID.String(), e.ActorID.String())
}

// ParseField decodes a buffer hash field back into an event.
func ParseField(field string) (Event, error) {
	parts := strings.SplitN(field, ":", 3)
	if len(parts) != 3 {
		return Event{}, ErrInvalidField
	}
	eventType := EventType(parts[0])
	if !ValidEventType(eventType) {
		return Event{}, ErrInvalidField
	}
	target, err := snowflake.ParseString(parts[1])
	if err != nil {
		return Event{}, ErrInvalidField
	}
	actor, err := snowflake.ParseString(parts[2])
	if err != nil {
		return Event{}, ErrInvalidField
	}
	return Event{Type: eventType, TargetID: target, ActorID: actor}, nil
}

// Counter is the durable per-target tally.
type Counter struct {
	TargetID  snowflake.ID `json:"target_id" gorm:"primaryKey;autoIncrement:false"`
	Type      EventType    `json:"type" gorm:"type:text;primaryKey"`
	Count     int64        `json:"count" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Counter) TableName() string { return "engagement_counters" }

var (
	ErrInvalidType   = errors.New("invalid_engagement_type")
	ErrInvalidTarget = errors.New("invalid_engagement_target")
	ErrInvalidActor  = errors.New("invalid_engagement_actor")
	ErrInvalidField  = errors.New("invalid_buffer_field")
)

type Service interface {
	// Record buffers the event in redis. Duplicate events within the
	// buffering window collapse onto one hash field.
	Record(ctx context.Context, eventType EventType, targetID, actorID snowflake.ID) error

	// Flush drains up to maxBatch buffered events into the counters,
	// applying each (type, target, actor) at most once ever. Returns the
	// number of events drained.
	Flush(ctx context.Context, maxBatch int) (int, error)

	// Trending returns the highest counters, served from a short-lived
	// redis cache.
	Trending(ctx context.Context, limit int) ([]Counter, error)
}
