package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID, limit int) ([]Order, error)
	FindPlan(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)

	// UpdateStatus writes the new status only when the stored status still
	// equals prior, reporting whether a row was updated.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, prior, next OrderStatus, meta TransitionMeta, now time.Time) (bool, error)
}
