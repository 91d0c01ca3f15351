package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/datallboy/goytbot/internal/domain"
)

func sampleRuns() []*domain.BatchRun {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*domain.BatchRun{{
		ID:           "2bWmcsBZqHqK0iqQzLJ3Zq8Kx0F",
		SourceURL:    "https://www.youtube.com/playlist?list=PL1",
		TargetHeight: 720,
		Playlist:     true,
		Status:       domain.RunCompleted,
		CreatedAt:    created,
		Items: []*domain.BatchItem{
			{Index: 1, Total: 2, Status: domain.ItemSucceeded, Title: "Clip A", DeliveredAs: domain.DeliveredVideo},
			{Index: 2, Total: 2, Status: domain.ItemFailed, Error: "no suitable format could be downloaded"},
		},
	}}
}

func TestPrintRunsFormats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"table", []string{"2bWmcsBZqHqK0iqQzLJ3Zq8Kx0F", "720p", "1 ok / 1 failed", "Clip A", "no suitable format"}},
		{"json", []string{`"target_height": 720`, `"title": "Clip A"`}},
		{"yaml", []string{"target_height: 720", "title: Clip A", "status: failed"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printRuns(&buf, sampleRuns(), tt.format); err != nil {
				t.Fatalf("printRuns: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Fatalf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestPrintRunsUnknownFormat(t *testing.T) {
	if err := printRuns(&bytes.Buffer{}, nil, "xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestHeightLabel(t *testing.T) {
	if heightLabel(0) != "best" || heightLabel(480) != "480p" {
		t.Fatal("unexpected labels")
	}
}
