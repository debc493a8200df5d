package model

import "time"

// FallbackCategoryName is the seeded permanent category of each type.
const FallbackCategoryName = "Others"

// Category groups transactions of a single type.
type Category struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ID          string
	Name        string
	Icon        string
	Type        TransactionType
	IsPermanent bool
}
