package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Guest is an invitee. Only Arrived and ArrivedAt change after import, and
// ArrivedAt is set exactly when Arrived is true.
type Guest struct {
	bun.BaseModel `bun:"table:guests"`

	ID        string     `bun:"id,pk" json:"id"`
	Name      string     `bun:"nome,notnull" json:"nome"`
	Room      string     `bun:"sala,notnull" json:"sala"`
	Arrived   bool       `bun:"entrata,notnull" json:"entrata"`
	ArrivedAt *time.Time `bun:"ora_ingresso" json:"ora_ingresso,omitempty"`
}

// GateStats is the operator summary of the current lifecycle.
type GateStats struct {
	Guests       int `json:"guests"`
	Arrived      int `json:"arrived"`
	Tokens       int `json:"tokens"`
	UsedTokens   int `json:"used_tokens"`
	PendingCount int `json:"pending"`
}
