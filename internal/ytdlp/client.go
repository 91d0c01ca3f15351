package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/platform"
)

// OutputTemplate names downloads after the video title inside the target dir.
const OutputTemplate = "%(title)s.%(ext)s"

// Info is the subset of yt-dlp's JSON we care about, for both single videos
// (-j after download) and flat playlists (-J).
type Info struct {
	ID       string  `json:"id"`
	Type     string  `json:"_type"`
	Title    string  `json:"title"`
	Ext      string  `json:"ext"`
	Duration float64 `json:"duration"`

	Filename           string              `json:"_filename"`
	Filepath           string              `json:"filepath"`
	RequestedDownloads []RequestedDownload `json:"requested_downloads"`

	Entries []Entry `json:"entries"`
}

type RequestedDownload struct {
	Filepath string `json:"filepath"`
}

type Entry struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ReportedPaths lists the final file locations yt-dlp announced, most
// authoritative first. Merged downloads only appear in requested_downloads.
func (i *Info) ReportedPaths() []string {
	if i == nil {
		return nil
	}
	var paths []string
	for _, rd := range i.RequestedDownloads {
		if rd.Filepath != "" {
			paths = append(paths, rd.Filepath)
		}
	}
	for _, p := range []string{i.Filepath, i.Filename} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

type DownloadOptions struct {
	URL       string
	Format    string
	OutputDir string

	// MergeMP4 asks yt-dlp to remux separate streams into an mp4 container.
	MergeMP4 bool
}

type Client struct {
	BinaryPath  string
	CookiesPath string
	log         *logger.Logger
}

// New locates the yt-dlp binary. A configured cookies file that does not
// exist is ignored with a warning, matching how the bot has always behaved.
func New(binary, cookies string, log *logger.Logger) (*Client, error) {
	if binary == "" {
		binary = "yt-dlp"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp binary not found in PATH: %w", err)
	}

	c := &Client{BinaryPath: path, log: log}
	if strings.TrimSpace(cookies) != "" {
		abs, err := resolveCookiesPath(cookies)
		if err != nil {
			log.Warn("cookies disabled: %v", err)
		} else {
			c.CookiesPath = abs
		}
	}
	return c, nil
}

// Download fetches one video and returns the metadata yt-dlp printed for it.
// The returned Info may be empty when the tool printed nothing parseable;
// callers then locate the file themselves.
func (c *Client) Download(ctx context.Context, opts DownloadOptions) (*Info, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	args := DownloadArgs(opts, c.CookiesPath)
	stdout, err := c.run(ctx, args)
	if err != nil {
		return nil, err
	}

	info, perr := parseLastJSON(stdout)
	if perr != nil {
		c.log.Debug("could not parse yt-dlp output for %s: %v", opts.URL, perr)
		return &Info{}, nil
	}
	return info, nil
}

// DownloadArgs builds the argument list for a single-video download.
func DownloadArgs(opts DownloadOptions, cookies string) []string {
	args := []string{
		"--no-playlist",
		"--no-simulate",
		"-j",
		"--no-progress",
		"-f", opts.Format,
		"-o", filepath.Join(opts.OutputDir, OutputTemplate),
	}
	if opts.MergeMP4 {
		args = append(args, "--merge-output-format", "mp4")
	}
	if cookies != "" {
		args = append(args, "--cookies", cookies)
	}
	return append(args, opts.URL)
}

// FlatPlaylist lists a source without downloading anything.
func (c *Client) FlatPlaylist(ctx context.Context, url string) (*Info, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("source URL is required")
	}

	args := []string{"--flat-playlist", "-J"}
	if c.CookiesPath != "" {
		args = append(args, "--cookies", c.CookiesPath)
	}
	args = append(args, url)

	stdout, err := c.run(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(stdout)) == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}

	var info Info
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp listing: %w", err)
	}
	return &info, nil
}

// Version reports the installed yt-dlp version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, []string{"--version"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.log.Debug("exec %s %s", c.BinaryPath, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp: %w", ctx.Err())
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, platform.TailLines(stderr.String(), 5))
	}
	return stdout.Bytes(), nil
}

func parseLastJSON(out []byte) (*Info, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var info Info
		if err := json.Unmarshal(line, &info); err != nil {
			return nil, err
		}
		return &info, nil
	}
	return nil, fmt.Errorf("no JSON object in output")
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
