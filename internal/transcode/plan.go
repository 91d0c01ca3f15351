package transcode

import (
	"math"

	"github.com/datallboy/goytbot/internal/domain"
)

const (
	MinVideoKbps     = 100
	MaxVideoKbps     = 5000
	MinVideoBytes    = 150_000
	DefaultAudioKbps = 64
)

// Plan splits targetBytes between a fixed audio track and whatever is left
// for video over duration seconds. The video rate never drops below
// MinVideoKbps or exceeds MaxVideoKbps, so very long inputs may overshoot.
func Plan(duration float64, targetBytes int64, audioKbps int) domain.TranscodePlan {
	if audioKbps <= 0 {
		audioKbps = DefaultAudioKbps
	}

	audioBytes := float64(audioKbps) * 1000 / 8 * duration
	videoBytes := math.Max(float64(targetBytes)-audioBytes, MinVideoBytes)

	kbps := int(math.Floor(videoBytes * 8 / duration / 1000))
	kbps = min(max(kbps, MinVideoKbps), MaxVideoKbps)

	return domain.TranscodePlan{
		Duration:  duration,
		AudioKbps: audioKbps,
		VideoKbps: kbps,
	}
}
