package provision

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"

	"checkin-gate/internal/checkin/db"
	"checkin-gate/internal/checkin/qr"
	"checkin-gate/internal/logger"
	"checkin-gate/internal/models"
	"checkin-gate/internal/utils"
)

type ImportOptions struct {
	Replace   bool
	Delimiter rune
}

type ImportSummary struct {
	Rows     int
	Skipped  int
	Inserted int
}

type TokenOptions struct {
	PerGuest    int
	OnlyMissing bool
	QRDir       string
}

// Provisioner fills the store before the doors open.
type Provisioner struct {
	DB     *db.DB
	Logger *logger.Logger
	QR     *qr.Generator
}

func NewProvisioner(gateDB *db.DB, log *logger.Logger, gen *qr.Generator) *Provisioner {
	return &Provisioner{DB: gateDB, Logger: log, QR: gen}
}

// ImportGuests loads a guest list. Ids already in the store are left as they are.
func (p *Provisioner) ImportGuests(ctx context.Context, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	parsed, err := ParseGuests(r, opts.Delimiter)
	if err != nil {
		return ImportSummary{}, err
	}
	summary := ImportSummary{Rows: parsed.Rows, Skipped: parsed.Skipped}

	var inserted int
	if opts.Replace {
		inserted, err = p.DB.ReplaceGuests(ctx, parsed.Guests)
		if err != nil {
			return summary, fmt.Errorf("replace guests: %w", err)
		}
		p.Logger.Warn("IMPORT", "Existing guests and tokens replaced")
	} else {
		inserted, err = p.DB.CreateGuests(ctx, parsed.Guests)
		if err != nil {
			return summary, fmt.Errorf("insert guests: %w", err)
		}
	}
	summary.Inserted = inserted

	p.Logger.LogDatabase("IMPORT", "guests", fmt.Sprintf("%d rows, %d inserted, %d skipped", summary.Rows, summary.Inserted, summary.Skipped))
	return summary, nil
}

// GenerateTokens issues PerGuest fresh tokens for every guest, or only for
// guests without one when OnlyMissing is set. With QRDir, a PNG per token
// is written there as well.
func (p *Provisioner) GenerateTokens(ctx context.Context, opts TokenOptions) ([]models.Token, error) {
	perGuest := opts.PerGuest
	if perGuest < 1 {
		perGuest = 1
	}

	ids, err := p.DB.GuestIDs(ctx, opts.OnlyMissing)
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}

	tokens := make([]models.Token, 0, len(ids)*perGuest)
	for _, id := range ids {
		for i := 0; i < perGuest; i++ {
			tok, err := utils.GenerateToken()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, models.Token{Token: tok, GuestID: id})
		}
	}
	if len(tokens) == 0 {
		return tokens, nil
	}

	if err := p.DB.CreateTokens(ctx, tokens); err != nil {
		return nil, fmt.Errorf("insert tokens: %w", err)
	}
	p.Logger.LogDatabase("INSERT", "tokens", fmt.Sprintf("%d tokens for %d guests", len(tokens), len(ids)))

	if opts.QRDir != "" {
		if err := p.writeQRCodes(opts.QRDir, tokens); err != nil {
			return tokens, err
		}
	}
	return tokens, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (p *Provisioner) writeQRCodes(dir string, tokens []models.Token) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, t := range tokens {
		name := unsafeFileChars.ReplaceAllString(t.GuestID, "_") + "_" + t.Token
		if _, err := p.QR.WriteFile(dir, name, t.Token); err != nil {
			return err
		}
	}
	p.Logger.Info("QR", fmt.Sprintf("%d QR codes written to %s", len(tokens), dir))
	return nil
}
