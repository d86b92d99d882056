// Package models - listing.go defines the fields shared by every registry entry (plugins and
// overlays) together with the vote list that is aggregated from the per-entry vote tables.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PublishedAtLayout renders timestamps as fixed-length (30 character) UTC strings.
const PublishedAtLayout = "2006-01-02T15:04:05.000000000Z"

// FormatPublishedAt formats t for the publishedAt column.
func FormatPublishedAt(t time.Time) string {
	return t.UTC().Format(PublishedAtLayout)
}

// Vote is a single user's up (1) or down (-1) signal on an entry.
type Vote struct {
	UserID string `json:"userId" db:"userId"`
	Vote   int    `json:"vote" db:"vote"`
}

// Votes is the ordered vote list of an entry. It is read from a json_agg column.
type Votes []Vote

// Scan implements sql.Scanner for json_agg output.
func (v *Votes) Scan(src interface{}) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = Votes{}
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("unsupported votes column type %T", src)
	}

	out := Votes{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode votes: %w", err)
	}
	*v = out
	return nil
}

// Value implements driver.Valuer.
func (v Votes) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

// Score returns the sum of all votes.
func (v Votes) Score() int {
	score := 0
	for _, vote := range v {
		score += vote.Vote
	}
	return score
}

// ByUser returns the vote cast by userID, if any.
func (v Votes) ByUser(userID string) (Vote, bool) {
	for _, vote := range v {
		if vote.UserID == userID {
			return vote, true
		}
	}
	return Vote{}, false
}

// Listing holds the fields shared by plugins and overlays. It is also the
// projection returned by list endpoints, which omit the payload.
type Listing struct {
	ID             string `json:"id" db:"id"`
	Name           string `json:"name" db:"name" validate:"required,min=4,max=255"`
	Description    string `json:"description" db:"description" validate:"required"`
	PublisherID    string `json:"publisherId" db:"publisherId" validate:"required,max=255"`
	PublishedAt    string `json:"publishedAt" db:"publishedAt" validate:"required,len=30"`
	Version        int    `json:"version" db:"version" validate:"gte=1"`
	ImportedCount  int    `json:"importedCount" db:"importedCount" validate:"gte=0"`
	CompatibleWith string `json:"compatibleWith" db:"compatibleWith" validate:"required,max=255,constraint"`
	Votes          Votes  `json:"votes" db:"votes"`
}

// IsOwnedBy reports whether userID published the entry.
func (l *Listing) IsOwnedBy(userID string) bool {
	return userID != "" && l.PublisherID == userID
}

// GetID returns the entry id.
func (l *Listing) GetID() string {
	return l.ID
}
