package db

import (
	"context"

	"github.com/uptrace/bun"

	"checkin-gate/internal/models"
)

// ResetAll clears every guest's arrival and every token's use in a single
// transaction and returns the number of guest rows updated.
func (d *DB) ResetAll(ctx context.Context) (int, error) {
	var count int
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Guest)(nil)).
			Set("entrata = ?", false).
			Set("ora_ingresso = NULL").
			Where("1 = 1").
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		count = int(n)

		_, err = tx.NewUpdate().
			Model((*models.Token)(nil)).
			Set("used = ?", false).
			Where("1 = 1").
			Exec(ctx)
		return err
	})
	return count, err
}
