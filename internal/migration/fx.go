package migration

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(db *gorm.DB, log *zap.Logger, genID *snowflake.Node) error {
		if err := Run(db, log.Named("migration")); err != nil {
			return err
		}
		return SeedPlans(db, genID)
	}),
)
