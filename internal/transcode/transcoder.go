package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/datallboy/goytbot/internal/domain"
	"github.com/datallboy/goytbot/internal/infra/logger"
	"github.com/datallboy/goytbot/internal/platform"
)

const (
	VideoCodec    = "libx264"
	AudioCodec    = "aac"
	FastStartFlag = "+faststart"

	CompressedSuffix = "-compressed"

	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
)

type Mode string

const (
	ModeBitrate      Mode = "bitrate"
	ModeFixedQuality Mode = "fixed-quality"
)

type Options struct {
	FFmpeg      string
	FFprobe     string
	Preset      string
	FallbackCRF int
}

type Result struct {
	Path string
	Size int64
	Mode Mode

	// Plan is nil for fixed-quality encodes.
	Plan *domain.TranscodePlan
}

type Transcoder struct {
	FFmpegPath  string
	FFprobePath string
	preset      string
	crf         int
	log         *logger.Logger
}

func New(opts Options, log *logger.Logger) (*Transcoder, error) {
	ffmpeg, err := exec.LookPath(defaultString(opts.FFmpeg, "ffmpeg"))
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found in PATH: %w", err)
	}
	ffprobe, err := exec.LookPath(defaultString(opts.FFprobe, "ffprobe"))
	if err != nil {
		return nil, fmt.Errorf("ffprobe binary not found in PATH: %w", err)
	}

	crf := opts.FallbackCRF
	if crf <= 0 {
		crf = 28
	}

	return &Transcoder{
		FFmpegPath:  ffmpeg,
		FFprobePath: ffprobe,
		preset:      defaultString(opts.Preset, "veryfast"),
		crf:         crf,
		log:         log.With("transcode"),
	}, nil
}

// Probe returns the container duration in seconds.
func (t *Transcoder) Probe(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.FFprobePath,
		"-v", FFprobeLogLevel,
		"-show_entries", FFprobeShowEntries,
		"-of", FFprobeOutputFormat,
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	raw := strings.TrimSpace(string(out))
	d, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: unparseable duration %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("ffprobe: non-positive duration %v", d)
	}
	return d, nil
}

// Shrink re-encodes src into dst aiming for targetBytes. When the duration
// cannot be probed it falls back to a single fixed-quality encode. The result
// may still exceed targetBytes; callers check Result.Size.
func (t *Transcoder) Shrink(ctx context.Context, src, dst string, targetBytes int64, audioKbps int) (*Result, error) {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return nil, errors.New("transcode: output path must differ from input")
	}
	if audioKbps <= 0 {
		audioKbps = DefaultAudioKbps
	}

	var (
		args []string
		res  = &Result{Path: dst}
	)

	duration, err := t.Probe(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t.log.Warn("probe failed for %s, using fixed quality: %v", filepath.Base(src), err)
		res.Mode = ModeFixedQuality
		args = FixedQualityArgs(src, dst, t.preset, t.crf, audioKbps)
	} else {
		plan := Plan(duration, targetBytes, audioKbps)
		t.log.Info("encoding %s: %.0fs at %dk video / %dk audio", filepath.Base(src), duration, plan.VideoKbps, plan.AudioKbps)
		res.Mode = ModeBitrate
		res.Plan = &plan
		args = BitrateArgs(src, dst, t.preset, plan)
	}

	if err := t.encode(ctx, res.Mode, args, dst); err != nil {
		return nil, err
	}

	st, err := os.Stat(dst)
	if err != nil {
		return nil, &domain.EncodeError{Mode: string(res.Mode), Err: fmt.Errorf("output missing: %w", err)}
	}
	res.Size = st.Size()
	return res, nil
}

func (t *Transcoder) encode(ctx context.Context, mode Mode, args []string, dst string) error {
	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			return &domain.EncodeError{Mode: string(mode), Err: ctx.Err()}
		}
		return &domain.EncodeError{Mode: string(mode), Err: err, Output: platform.TailLines(string(output), 5)}
	}
	return nil
}

// BitrateArgs builds a single-pass encode capped at the planned rates.
func BitrateArgs(src, dst, preset string, plan domain.TranscodePlan) []string {
	v := strconv.Itoa(plan.VideoKbps) + "k"
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-c:v", VideoCodec,
		"-preset", preset,
		"-b:v", v,
		"-maxrate", v,
		"-bufsize", strconv.Itoa(plan.VideoKbps*2) + "k",
		"-c:a", AudioCodec,
		"-b:a", strconv.Itoa(plan.AudioKbps) + "k",
		"-movflags", FastStartFlag,
		dst,
	}
}

// FixedQualityArgs builds the constant-quality encode used when no duration is known.
func FixedQualityArgs(src, dst, preset string, crf, audioKbps int) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-c:v", VideoCodec,
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-c:a", AudioCodec,
		"-b:a", strconv.Itoa(audioKbps) + "k",
		"-movflags", FastStartFlag,
		dst,
	}
}

// OutputPath places the encode next to src with a distinct name.
func OutputPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + CompressedSuffix + ".mp4"
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
