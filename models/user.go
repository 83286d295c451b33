package models

import (
	"time"
)

// TokenKind distinguishes the two token currencies
type TokenKind string

const (
	TokenKindGold   TokenKind = "gold"
	TokenKindSilver TokenKind = "silver"
)

// User represents an account holding token balances
type User struct {
	Alias         string    `db:"alias"`
	GoldBalance   int64     `db:"gold_balance"`
	SilverBalance int64     `db:"silver_balance"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}
