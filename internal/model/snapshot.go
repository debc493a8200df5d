package model

import "time"

// SnapshotFormat identifies ledger backup files.
const SnapshotFormat = "ledgerkeep-backup"

// SnapshotVersion is the current backup file version.
const SnapshotVersion = 1

// Snapshot is the full ledger state captured in a single read.
type Snapshot struct {
	CreatedAt     time.Time          `json:"created_at"`
	Settings      map[string]string  `json:"settings"`
	Format        string             `json:"format"`
	Accounts      []SnapshotAccount  `json:"accounts"`
	Categories    []SnapshotCategory `json:"categories"`
	Transactions  []SnapshotEntry    `json:"transactions"`
	Version       int                `json:"version"`
	SchemaVersion uint               `json:"schema_version"`
}

// SnapshotAccount is the serialized form of an Account.
type SnapshotAccount struct {
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Icon           string    `json:"icon,omitempty"`
	OpeningBalance string    `json:"opening_balance"`
	IsDefault      bool      `json:"is_default"`
	IsPermanent    bool      `json:"is_permanent"`
}

// SnapshotCategory is the serialized form of a Category.
type SnapshotCategory struct {
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Icon        string          `json:"icon,omitempty"`
	Type        TransactionType `json:"type"`
	IsPermanent bool            `json:"is_permanent"`
}

// SnapshotEntry is the serialized form of a Transaction.
type SnapshotEntry struct {
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Amount      string          `json:"amount"`
	Type        TransactionType `json:"type"`
	CategoryID  string          `json:"category_id"`
	AccountID   string          `json:"account_id"`
}

// RowCount returns the number of ledger rows in the snapshot.
func (s *Snapshot) RowCount() int {
	return len(s.Accounts) + len(s.Categories) + len(s.Transactions)
}
