package models

import (
	"time"

	"github.com/midfield-app/clover/pkg/database"
)

// ScrapedPlayer is one inbound record from a ratings scraper. Immutable once
// received; lives only for the duration of one batch.
type ScrapedPlayer struct {
	SofifaID  string         `json:"sofifa_id,omitempty"`
	Name      string         `json:"name" validate:"required"`
	Overall   float64        `json:"overall" validate:"required"`
	Potential float64        `json:"potential,omitempty"`
	FullStats map[string]any `json:"full_stats,omitempty"`
}

// Topic is a canonical entity in the platform store. Players and clubs both
// live in the topics table, discriminated by Type.
type Topic struct {
	ID      string                    `json:"id" db:"id"`
	Title   string                    `json:"title" db:"title"`
	Type    string                    `json:"type" db:"type"`
	Ratings database.JSONB[RatingsBag] `json:"ratings" db:"ratings"`
}

// Topic types in the entity store
const (
	TopicTypePlayer = "player"
	TopicTypeClub   = "club"
)

// RatingsBag maps a source tag (e.g. "sofifa") to that source's last-synced
// ratings entry. Entries for different sources never clobber each other; a
// merge replaces only the resolving source's key.
type RatingsBag map[string]RatingsEntry

// RatingsEntry is one source's contribution to a player's ratings bag.
type RatingsEntry struct {
	ID              string         `json:"id"`
	Slug            string         `json:"slug"`
	Overall         float64        `json:"overall"`
	Potential       float64        `json:"potential"`
	Stats           map[string]any `json:"stats,omitempty"`
	MatchConfidence float64        `json:"match_confidence"`
	LastUpdated     time.Time      `json:"last_updated"`
}
