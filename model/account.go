package model

import (
	"time"
)

// Account is the billing identity a balance belongs to. The balance is
// held in minor units and is only mutated inside account-scoped
// database transactions.
type Account struct {
	ID        int64     `json:"-"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Balance   int64     `json:"balance"`
	Version   int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
