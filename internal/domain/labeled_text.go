package domain

import "time"

// LabeledText maps a user's label to the content identifier of the stored text.
type LabeledText struct {
	UserID    string
	Label     string
	CID       string
	CreatedAt time.Time
}
