package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"checkin-gate/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// FindGuestByID returns models.ErrNotFound when no guest has this id.
func (d *DB) FindGuestByID(ctx context.Context, id string) (*models.Guest, error) {
	return findGuest(ctx, d.Bun, id)
}

// TryAdmit flips the guest to arrived only if it has not arrived yet. The
// conditional update is the arbiter between concurrent scans: exactly one
// caller sees ok == true for a given lifecycle.
func (d *DB) TryAdmit(ctx context.Context, id string, now time.Time) (bool, *models.Guest, error) {
	changed, err := admitGuest(ctx, d.Bun, id, now)
	if err != nil {
		return false, nil, err
	}

	guest, err := findGuest(ctx, d.Bun, id)
	if err != nil {
		return false, nil, err
	}
	return changed, guest, nil
}

// AdmitWithToken marks the guest arrived and the token used as one unit.
// It returns models.ErrAlreadyAdmitted if either conditional update matched
// no row, in which case nothing is written.
func (d *DB) AdmitWithToken(ctx context.Context, token string, now time.Time) (*models.Guest, error) {
	var guest *models.Guest

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var tok models.Token
		err := tx.NewSelect().
			Model(&tok).
			Where("token = ?", token).
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}

		changed, err := admitGuest(ctx, tx, tok.GuestID, now)
		if err != nil {
			return err
		}
		if !changed {
			return models.ErrAlreadyAdmitted
		}

		res, err := tx.NewUpdate().
			Model((*models.Token)(nil)).
			Set("used = ?", true).
			Where("token = ?", token).
			Where("used = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to consume token: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return models.ErrAlreadyAdmitted
		}

		guest, err = findGuest(ctx, tx, tok.GuestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return guest, nil
}

// CreateGuests inserts guests, ignoring ids that already exist, and returns
// how many rows were inserted.
func (d *DB) CreateGuests(ctx context.Context, guests []models.Guest) (int, error) {
	return insertGuests(ctx, d.Bun, guests)
}

// ReplaceGuests deletes every token and guest and inserts guests in the same
// transaction. A failed insert leaves the previous list in place.
func (d *DB) ReplaceGuests(ctx context.Context, guests []models.Guest) (int, error) {
	var inserted int
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := deleteAll(ctx, tx); err != nil {
			return err
		}
		n, err := insertGuests(ctx, tx, guests)
		inserted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// DeleteAll removes every token and guest. Provisioning only.
func (d *DB) DeleteAll(ctx context.Context) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return deleteAll(ctx, tx)
	})
}

func insertGuests(ctx context.Context, idb bun.IDB, guests []models.Guest) (int, error) {
	if len(guests) == 0 {
		return 0, nil
	}
	res, err := idb.NewInsert().
		Model(&guests).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func deleteAll(ctx context.Context, idb bun.IDB) error {
	if _, err := idb.NewDelete().Model((*models.Token)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return err
	}
	_, err := idb.NewDelete().Model((*models.Guest)(nil)).Where("1 = 1").Exec(ctx)
	return err
}

func findGuest(ctx context.Context, idb bun.IDB, id string) (*models.Guest, error) {
	var guest models.Guest
	err := idb.NewSelect().
		Model(&guest).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &guest, nil
}

func admitGuest(ctx context.Context, idb bun.IDB, id string, now time.Time) (bool, error) {
	res, err := idb.NewUpdate().
		Model((*models.Guest)(nil)).
		Set("entrata = ?", true).
		Set("ora_ingresso = ?", now.UTC()).
		Where("id = ?", id).
		Where("entrata = ?", false).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to admit guest: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
