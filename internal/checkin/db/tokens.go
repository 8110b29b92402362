package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"checkin-gate/internal/models"
)

// FindByToken returns the token joined with its guest.
func (d *DB) FindByToken(ctx context.Context, token string) (*models.Token, error) {
	var tok models.Token
	err := d.Bun.NewSelect().
		Model(&tok).
		Relation("Guest").
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if tok.Guest == nil || tok.Guest.ID == "" {
		return nil, fmt.Errorf("token %s references missing guest %s", token, tok.GuestID)
	}
	return &tok, nil
}

// CreateTokens inserts tokens after checking every referenced guest exists.
func (d *DB) CreateTokens(ctx context.Context, tokens []models.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		checked := make(map[string]bool)
		for _, t := range tokens {
			if checked[t.GuestID] {
				continue
			}
			exists, err := tx.NewSelect().
				Model((*models.Guest)(nil)).
				Where("id = ?", t.GuestID).
				Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("guest %s: %w", t.GuestID, models.ErrNotFound)
			}
			checked[t.GuestID] = true
		}

		_, err := tx.NewInsert().Model(&tokens).Exec(ctx)
		return err
	})
}

// GuestIDs lists guest ids, optionally only those with no token yet.
func (d *DB) GuestIDs(ctx context.Context, withoutTokens bool) ([]string, error) {
	var ids []string
	q := d.Bun.NewSelect().
		Model((*models.Guest)(nil)).
		Column("id").
		Order("id")
	if withoutTokens {
		q = q.Where("NOT EXISTS (SELECT 1 FROM tokens AS t WHERE t.guest_id = ?TableAlias.id)")
	}
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (d *DB) ListTokens(ctx context.Context) ([]models.Token, error) {
	var tokens []models.Token
	err := d.Bun.NewSelect().
		Model(&tokens).
		Order("guest_id", "token").
		Scan(ctx)
	return tokens, err
}

// ListTokenExports returns one row per (guest, token) pair.
func (d *DB) ListTokenExports(ctx context.Context) ([]models.TokenExport, error) {
	var rows []models.TokenExport
	err := d.Bun.NewSelect().
		TableExpr("tokens AS t").
		ColumnExpr("g.id AS guest_id, g.nome, g.sala, t.token").
		Join("JOIN guests AS g ON g.id = t.guest_id").
		OrderExpr("g.id ASC, t.token ASC").
		Scan(ctx, &rows)
	return rows, err
}
