package models

import "time"

// MatchMethod identifies which strategy accepted (or failed to accept) a match
type MatchMethod string

const (
	MatchMethodID             MatchMethod = "id"
	MatchMethodExactScoped    MatchMethod = "exact_scoped"
	MatchMethodFuzzyScoped    MatchMethod = "fuzzy_scoped"
	MatchMethodGlobalFallback MatchMethod = "global_fallback"
	MatchMethodUnresolved     MatchMethod = "unresolved"
)

// MatchResult is the outcome of resolving one scraped record. A record yields
// at most one result with EntityID set; the resolver stops at the first
// accepted match.
type MatchResult struct {
	Record     *ScrapedPlayer `json:"record"`
	EntityID   string         `json:"entity_id,omitempty"`
	Method     MatchMethod    `json:"method"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Matched reports whether a strategy accepted this record.
func (r *MatchResult) Matched() bool {
	return r.EntityID != ""
}

// MatchLogEntry is one audit row per attempted resolution, matched or not.
// Low-confidence and unresolved rows are what the review endpoint surfaces.
type MatchLogEntry struct {
	ID                string         `json:"id" db:"id"`
	EntityID          *string        `json:"entity_id,omitempty" db:"entity_id"`
	SourceDisplayName string         `json:"source_display_name" db:"source_display_name"`
	SourceExternalID  string         `json:"source_external_id" db:"source_external_id"`
	SourceTag         string         `json:"source_tag" db:"source_tag"`
	MatchConfidence   float64        `json:"match_confidence" db:"match_confidence"`
	MatchMethod       MatchMethod    `json:"match_method" db:"match_method"`
	MatchDetails      MatchDetails   `json:"match_details" db:"-"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// MatchDetails carries batch context for human review of a log row.
type MatchDetails struct {
	Overall float64 `json:"overall"`
	Team    string  `json:"team"`
}
