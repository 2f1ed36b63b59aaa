package domain

import "time"

// TransactionSnapshot is the cached batch of most recent transactions for one (user, address) pair.
type TransactionSnapshot struct {
	UserID       string
	Address      string
	Transactions []Transaction
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
