package domain

// DownloadRequest describes one item to fetch. TargetHeight of 0 means no
// cap was chosen and only the unconstrained format is attempted.
type DownloadRequest struct {
	SourceURL    string
	TargetHeight int
	WorkDir      string
}

// ResolvedMedia is a downloaded file on disk, owned by the stage that produced it.
type ResolvedMedia struct {
	Path     string  `json:"path"`
	Title    string  `json:"title"`
	Ext      string  `json:"ext"`
	Duration float64 `json:"duration,omitempty"`
	Size     int64   `json:"size"`

	// Format is the selector that produced the file.
	Format string `json:"format"`
}

// HasDuration reports whether the extractor knew the running time.
func (m *ResolvedMedia) HasDuration() bool {
	return m != nil && m.Duration > 0
}

// TranscodePlan holds the bitrates chosen for a size-constrained encode.
type TranscodePlan struct {
	Duration  float64
	AudioKbps int
	VideoKbps int
}
