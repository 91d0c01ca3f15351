package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/datallboy/goytbot/internal/infra/logger"
)

const fakeYTDLP = `#!/usr/bin/env bash
set -euo pipefail
printf '%s\n' "$@" > "$ARGS_FILE"
if [[ "$1" == "--flat-playlist" ]]; then
  echo '{"_type":"playlist","title":"Mix","entries":[{"id":"a1"},{"id":"b2","url":"https://www.youtube.com/watch?v=b2"}]}'
  exit 0
fi
if [[ "$1" == "--version" ]]; then
  echo "2025.01.01"
  exit 0
fi
out=""
fmt=""
prev=""
for a in "$@"; do
  [[ "$prev" == "-o" ]] && out="$a"
  [[ "$prev" == "-f" ]] && fmt="$a"
  prev="$a"
done
if [[ "${FAIL_FORMAT:-}" == "$fmt" ]]; then
  echo "ERROR: Requested format is not available" >&2
  exit 1
fi
dir=$(dirname "$out")
echo "data" > "$dir/My Clip.mp4"
echo "[info] some progress noise"
echo "{\"title\":\"My Clip\",\"ext\":\"mp4\",\"duration\":12.5,\"requested_downloads\":[{\"filepath\":\"$dir/My Clip.mp4\"}]}"
`

func installFake(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fakeBin, "yt-dlp"), []byte(fakeYTDLP), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	argsFile := filepath.Join(tmp, "args.txt")
	t.Setenv("ARGS_FILE", argsFile)
	return argsFile
}

func readArgs(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestDownloadParsesReportedPath(t *testing.T) {
	argsFile := installFake(t)
	outDir := t.TempDir()

	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(cookies, []byte("# Netscape"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := New("yt-dlp", cookies, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	info, err := c.Download(context.Background(), DownloadOptions{
		URL:       "https://youtu.be/x",
		Format:    "best[height<=360]",
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	want := filepath.Join(outDir, "My Clip.mp4")
	if paths := info.ReportedPaths(); len(paths) == 0 || paths[0] != want {
		t.Fatalf("reported paths = %v, want %s first", paths, want)
	}
	if info.Duration != 12.5 {
		t.Fatalf("duration = %v", info.Duration)
	}

	args := readArgs(t, argsFile)
	for _, flag := range []string{"--no-playlist", "--cookies", "best[height<=360]", filepath.Join(outDir, OutputTemplate)} {
		if !slices.Contains(args, flag) {
			t.Fatalf("args %v missing %q", args, flag)
		}
	}
	if args[len(args)-1] != "https://youtu.be/x" {
		t.Fatalf("url must be last, got %v", args)
	}
}

func TestDownloadFailureCarriesStderr(t *testing.T) {
	installFake(t)
	t.Setenv("FAIL_FORMAT", "best")

	c, err := New("yt-dlp", "", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Download(context.Background(), DownloadOptions{URL: "u", Format: "best", OutputDir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "Requested format is not available") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFlatPlaylist(t *testing.T) {
	argsFile := installFake(t)

	c, err := New("yt-dlp", "", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	info, err := c.FlatPlaylist(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if err != nil {
		t.Fatalf("FlatPlaylist: %v", err)
	}
	if len(info.Entries) != 2 || info.Entries[0].ID != "a1" {
		t.Fatalf("entries = %+v", info.Entries)
	}

	args := readArgs(t, argsFile)
	if !slices.Equal(args[:2], []string{"--flat-playlist", "-J"}) {
		t.Fatalf("args = %v", args)
	}
}

func TestMissingCookiesIgnored(t *testing.T) {
	installFake(t)
	c, err := New("yt-dlp", "/does/not/exist.txt", logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if c.CookiesPath != "" {
		t.Fatalf("cookies should be disabled, got %q", c.CookiesPath)
	}
}

func TestDownloadArgsMerge(t *testing.T) {
	args := DownloadArgs(DownloadOptions{URL: "u", Format: "bestvideo[height<=720]+bestaudio", OutputDir: "/w", MergeMP4: true}, "")
	if !slices.Contains(args, "--merge-output-format") {
		t.Fatalf("merge flag missing: %v", args)
	}
	if slices.Contains(args, "--cookies") {
		t.Fatalf("cookies should be absent: %v", args)
	}
}
