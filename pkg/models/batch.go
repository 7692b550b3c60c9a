package models

// SyncBatchRequest is one team's scraped roster from one ratings source.
type SyncBatchRequest struct {
	Team    string          `json:"team" validate:"required"`
	Players []ScrapedPlayer `json:"players" validate:"required,min=1,dive"`
}

// SyncBatchResponse reports exactly what the batch applied.
type SyncBatchResponse struct {
	Message   string `json:"message"`
	Team      string `json:"team"`
	Processed int    `json:"processed"`
	Matched   int    `json:"matched"`
	Healed    int    `json:"healed"`
}

// BatchSummary is the orchestrator's aggregate outcome for one batch.
type BatchSummary struct {
	Processed int
	Matched   int
	Healed    int
}
