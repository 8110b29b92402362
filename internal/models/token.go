package models

import (
	"github.com/uptrace/bun"
)

// Token is a single-use QR credential. Several tokens may point at the same guest.
type Token struct {
	bun.BaseModel `bun:"table:tokens"`

	Token   string `bun:"token,pk" json:"token"`
	GuestID string `bun:"guest_id,notnull" json:"guest_id"`
	Used    bool   `bun:"used,notnull" json:"used"`

	Guest *Guest `bun:"rel:belongs-to,join:guest_id=id" json:"guest,omitempty"`
}

// TokenExport is one (guest, token) row of the token export.
type TokenExport struct {
	GuestID string `bun:"guest_id"`
	Name    string `bun:"nome"`
	Room    string `bun:"sala"`
	Token   string `bun:"token"`
}
