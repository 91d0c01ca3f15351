package domain

import "time"

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemRunning   ItemStatus = "running"
	ItemSucceeded ItemStatus = "succeeded"
	ItemFailed    ItemStatus = "failed"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed" // expansion failed, nothing attempted
	RunCancelled RunStatus = "cancelled"
)

type DeliveryKind string

const (
	DeliveredVideo    DeliveryKind = "video"
	DeliveredDocument DeliveryKind = "document"
)

// BatchItem is one entry of a run. It is created when the source is expanded
// and updated in place exactly once with its outcome.
type BatchItem struct {
	RunID     string     `json:"run_id" yaml:"run_id"`
	Index     int        `json:"index" yaml:"index"`
	Total     int        `json:"total" yaml:"total"`
	SourceURL string     `json:"source_url" yaml:"source_url"`
	Status    ItemStatus `json:"status" yaml:"status"`

	Title       string       `json:"title,omitempty" yaml:"title,omitempty"`
	Bytes       int64        `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	DeliveredAs DeliveryKind `json:"delivered_as,omitempty" yaml:"delivered_as,omitempty"`
	Transcoded  bool         `json:"transcoded" yaml:"transcoded"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`

	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}

func (i *BatchItem) Succeed(title string, size int64, kind DeliveryKind, transcoded bool) {
	i.Status = ItemSucceeded
	i.Title = title
	i.Bytes = size
	i.DeliveredAs = kind
	i.Transcoded = transcoded
	i.FinishedAt = time.Now()
}

func (i *BatchItem) Fail(reason string) {
	i.Status = ItemFailed
	i.Error = reason
	i.FinishedAt = time.Now()
}

func (i *BatchItem) Done() bool {
	return i.Status == ItemSucceeded || i.Status == ItemFailed
}

// BatchRun groups the items produced from one user request.
type BatchRun struct {
	ID              string    `json:"id" yaml:"id"`
	ConversationKey string    `json:"conversation_key" yaml:"conversation_key"`
	SourceURL       string    `json:"source_url" yaml:"source_url"`
	TargetHeight    int       `json:"target_height" yaml:"target_height"`
	Playlist        bool      `json:"playlist" yaml:"playlist"`
	Status          RunStatus `json:"status" yaml:"status"`
	Error           string    `json:"error,omitempty" yaml:"error,omitempty"`

	Items []*BatchItem `json:"items,omitempty" yaml:"items,omitempty"`

	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitzero" yaml:"finished_at,omitempty"`
}

// Counts returns the number of succeeded and failed items.
func (r *BatchRun) Counts() (succeeded, failed int) {
	for _, it := range r.Items {
		switch it.Status {
		case ItemSucceeded:
			succeeded++
		case ItemFailed:
			failed++
		}
	}
	return succeeded, failed
}
