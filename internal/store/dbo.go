package store

import (
	"database/sql"
	"time"

	"github.com/datallboy/goytbot/internal/domain"
)

// runDBO maps to the batch_runs table
type runDBO struct {
	ID              string         `db:"id"`
	ConversationKey string         `db:"conversation_key"`
	SourceURL       string         `db:"source_url"`
	TargetHeight    int            `db:"target_height"`
	Playlist        bool           `db:"playlist"`
	Status          string         `db:"status"`
	Error           sql.NullString `db:"error"`
	Total           int            `db:"total"`
	CreatedAt       int64          `db:"created_at"`
	FinishedAt      sql.NullInt64  `db:"finished_at"`
}

// Mapper: DBO to Domain BatchRun
func (r *runDBO) ToDomain() *domain.BatchRun {
	run := &domain.BatchRun{
		ID:              r.ID,
		ConversationKey: r.ConversationKey,
		SourceURL:       r.SourceURL,
		TargetHeight:    r.TargetHeight,
		Playlist:        r.Playlist,
		Status:          domain.RunStatus(r.Status),
		Error:           r.Error.String,
		CreatedAt:       time.Unix(r.CreatedAt, 0),
	}
	if r.FinishedAt.Valid {
		run.FinishedAt = time.Unix(r.FinishedAt.Int64, 0)
	}
	return run
}

// Mapper: Domain BatchRun to DBO
func (r *runDBO) FromDomain(run *domain.BatchRun) {
	r.ID = run.ID
	r.ConversationKey = run.ConversationKey
	r.SourceURL = run.SourceURL
	r.TargetHeight = run.TargetHeight
	r.Playlist = run.Playlist
	r.Status = string(run.Status)
	r.Error = nullString(run.Error)
	r.Total = len(run.Items)
	r.CreatedAt = run.CreatedAt.Unix()
	r.FinishedAt = nullTime(run.FinishedAt)
}

// itemDBO maps to the batch_items table
type itemDBO struct {
	RunID       string         `db:"run_id"`
	Index       int            `db:"idx"`
	SourceURL   string         `db:"source_url"`
	Status      string         `db:"status"`
	Title       sql.NullString `db:"title"`
	Bytes       int64          `db:"bytes"`
	DeliveredAs sql.NullString `db:"delivered_as"`
	Transcoded  bool           `db:"transcoded"`
	Error       sql.NullString `db:"error"`
	FinishedAt  sql.NullInt64  `db:"finished_at"`
}

// Mapper: DBO to Domain BatchItem. Total comes from the parent run.
func (i *itemDBO) ToDomain(total int) *domain.BatchItem {
	item := &domain.BatchItem{
		RunID:       i.RunID,
		Index:       i.Index,
		Total:       total,
		SourceURL:   i.SourceURL,
		Status:      domain.ItemStatus(i.Status),
		Title:       i.Title.String,
		Bytes:       i.Bytes,
		DeliveredAs: domain.DeliveryKind(i.DeliveredAs.String),
		Transcoded:  i.Transcoded,
		Error:       i.Error.String,
	}
	if i.FinishedAt.Valid {
		item.FinishedAt = time.Unix(i.FinishedAt.Int64, 0)
	}
	return item
}

// Mapper: Domain BatchItem to DBO
func (i *itemDBO) FromDomain(item *domain.BatchItem) {
	i.RunID = item.RunID
	i.Index = item.Index
	i.SourceURL = item.SourceURL
	i.Status = string(item.Status)
	i.Title = nullString(item.Title)
	i.Bytes = item.Bytes
	i.DeliveredAs = nullString(string(item.DeliveredAs))
	i.Transcoded = item.Transcoded
	i.Error = nullString(item.Error)
	i.FinishedAt = nullTime(item.FinishedAt)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
