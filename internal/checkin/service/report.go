package checkin

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"checkin-gate/internal/models"
)

// Report lists every guest, arrived first in arrival order.
func (s *GateService) Report(ctx context.Context) ([]models.Guest, error) {
	guests, err := s.DB.ListGuests(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return guests, nil
}

func (s *GateService) Stats(ctx context.Context) (models.GateStats, error) {
	stats, err := s.DB.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return stats, nil
}

// WriteTokensCSV writes id,nome,sala,token,link with link = baseURL + token.
func (s *GateService) WriteTokensCSV(ctx context.Context, w io.Writer, baseURL string) error {
	rows, err := s.DB.ListTokenExports(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "nome", "sala", "token", "link"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.GuestID, row.Name, row.Room, row.Token, baseURL + row.Token}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *GateService) Snapshot(ctx context.Context) ([]byte, string, error) {
	data, format, err := s.DB.Snapshot(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return data, format, nil
}
