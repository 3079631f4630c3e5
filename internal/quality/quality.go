// Package quality implements the deterministic audio quality scorer
// and the upgrade-candidate heuristic built on top of it.
package quality

import (
	"strings"
	"time"

	"github.com/loungecrasher/music-tools/internal/audiotag"
)

// formatWeight gives each container/codec its Format component of the
// score (0–40), per the fixed point table.
var formatWeight = map[string]int{
	"flac": 40, "alac": 40,
	"wav": 38, "aiff": 38,
	"ape": 37, "wv": 37, "tta": 37,
	"dsd": 36, "dsf": 36,
	"aac": 22, "m4a": 22,
	"mp3": 20,
	"ogg": 18, "opus": 18,
	"wma": 15,
}

const defaultFormatWeight = 10

// losslessFormats is the set of formats whose Bitrate component is
// always the full 30 points, and which are eligible for is_lossless.
var losslessFormats = map[string]bool{
	"flac": true, "alac": true, "wav": true, "aiff": true,
	"ape": true, "wv": true, "tta": true, "dsd": true, "dsf": true,
}

// IsLossless reports whether format is a lossless container/codec.
func IsLossless(format string) bool {
	return losslessFormats[strings.ToLower(format)]
}

// IsHiRes reports whether the stream exceeds CD-quality resolution:
// sample rate above 48kHz or bit depth above 16.
func IsHiRes(sampleRateHz, bitDepth int) bool {
	return sampleRateHz > 48000 || bitDepth > 16
}

// Score computes the deterministic 0–100 quality score from a file's
// format, bitrate, sample rate, VBR status, file mtime, and a
// reference "now" (injected so scoring stays deterministic in tests).
func Score(props *audiotag.Properties, mtime, now time.Time) int {
	format := strings.ToLower(props.Format)
	lossless := losslessFormats[format]

	total := 0

	total += formatComponent(format)
	total += bitrateComponent(lossless, props.Bitrate)
	total += sampleRateComponent(props.SampleRate)
	total += recencyComponent(mtime, now)

	if props.BitrateMode == audiotag.ModeVBR {
		total += 2
	}

	return clamp(total, 0, 100)
}

func formatComponent(format string) int {
	if w, ok := formatWeight[format]; ok {
		return w
	}
	return defaultFormatWeight
}

func bitrateComponent(lossless bool, bitrateKbps int) int {
	if lossless {
		return 30
	}
	if bitrateKbps <= 0 {
		return 0
	}
	b := bitrateKbps
	if b > 320 {
		b = 320
	}
	return roundDiv(30*b, 320)
}

func sampleRateComponent(sampleRateHz int) int {
	switch {
	case sampleRateHz >= 96000:
		return 20
	case sampleRateHz >= 48000:
		return 15
	case sampleRateHz >= 44100:
		return 10
	case sampleRateHz > 0:
		return 5
	default:
		return 0
	}
}

func recencyComponent(mtime, now time.Time) int {
	age := now.Sub(mtime)
	switch {
	case age < 365*24*time.Hour:
		return 10
	case age < 1825*24*time.Hour:
		return 5
	default:
		return 0
	}
}

func roundDiv(num, den int) int {
	return (num + den/2) / den
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
