package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"checkin-gate/internal/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().
			Model((*models.Guest)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateTable().
			Model((*models.Token)(nil)).
			IfNotExists().
			ForeignKey(`("guest_id") REFERENCES "guests" ("id")`).
			Exec(ctx); err != nil {
			return err
		}

		_, err := db.NewCreateIndex().
			Model((*models.Token)(nil)).
			Index("tokens_guest_id_idx").
			Column("guest_id").
			IfNotExists().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewDropTable().Model((*models.Token)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		_, err := db.NewDropTable().Model((*models.Guest)(nil)).IfExists().Exec(ctx)
		return err
	})
}
