package controllers

import (
	"time"

	"github.com/datallboy/goytbot/internal/domain"
)

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// RunSummary is a run without its items.
type RunSummary struct {
	ID           string           `json:"id"`
	SourceURL    string           `json:"source_url"`
	TargetHeight int              `json:"target_height"`
	Playlist     bool             `json:"playlist"`
	Status       domain.RunStatus `json:"status"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	FinishedAt   time.Time        `json:"finished_at,omitzero"`
}

type RunListResponse struct {
	Runs []RunSummary `json:"runs"`
}

func summarize(r *domain.BatchRun) RunSummary {
	return RunSummary{
		ID:           r.ID,
		SourceURL:    r.SourceURL,
		TargetHeight: r.TargetHeight,
		Playlist:     r.Playlist,
		Status:       r.Status,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
		FinishedAt:   r.FinishedAt,
	}
}
