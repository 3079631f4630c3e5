package quality

import (
	"testing"
	"time"

	"github.com/loungecrasher/music-tools/internal/audiotag"
	"github.com/loungecrasher/music-tools/internal/store"
)

func TestQualityMonotonicity(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-30 * 24 * time.Hour)

	flacHiRes := &audiotag.Properties{
		Format:     "flac",
		SampleRate: 96000,
		BitDepth:   24,
	}
	mp3Lossy := &audiotag.Properties{
		Format:     "mp3",
		SampleRate: 44100,
		Bitrate:    128,
	}

	a := Score(flacHiRes, recent, now)
	b := Score(mp3Lossy, recent, now)
	if a <= b {
		t.Fatalf("expected FLAC hi-res score %d > MP3-128 score %d", a, b)
	}
}

func TestScoreClampedToRange(t *testing.T) {
	now := time.Now()
	p := &audiotag.Properties{Format: "flac", SampleRate: 192000, BitDepth: 24, BitrateMode: audiotag.ModeVBR}
	got := Score(p, now, now)
	if got < 0 || got > 100 {
		t.Fatalf("Score() = %d, want in [0,100]", got)
	}
}

func TestScoreUnknownFormatFallsBackToDefault(t *testing.T) {
	now := time.Now()
	p := &audiotag.Properties{Format: "weird", SampleRate: 44100, Bitrate: 128}
	got := Score(p, now, now)
	// defaultFormatWeight(10) + bitrate(round(30*128/320)=12) + sampleRate(10) + recency(10) = 42
	if got != 42 {
		t.Errorf("Score() = %d, want 42", got)
	}
}

func TestRecencyBuckets(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	p := &audiotag.Properties{Format: "flac", SampleRate: 44100}

	recent := Score(p, now.Add(-30*24*time.Hour), now)
	mid := Score(p, now.Add(-1000*24*time.Hour), now)
	old := Score(p, now.Add(-2000*24*time.Hour), now)

	if !(recent > mid && mid > old) {
		t.Errorf("expected recency to strictly decrease: recent=%d mid=%d old=%d", recent, mid, old)
	}
}

func TestIsLosslessAndHiRes(t *testing.T) {
	if !IsLossless("FLAC") {
		t.Error("FLAC should be lossless (case-insensitive)")
	}
	if IsLossless("mp3") {
		t.Error("mp3 should not be lossless")
	}
	if !IsHiRes(96000, 16) {
		t.Error("96kHz should count as hi-res regardless of bit depth")
	}
	if !IsHiRes(44100, 24) {
		t.Error("24-bit should count as hi-res regardless of sample rate")
	}
	if IsHiRes(44100, 16) {
		t.Error("44.1kHz/16-bit should not count as hi-res")
	}
}

func TestSuggestUpgrade(t *testing.T) {
	current := store.LibraryFile{ID: 1, Format: "mp3", QualityScore: 50}
	siblings := []store.LibraryFile{
		{ID: 2, Format: "flac", QualityScore: 90},
	}

	cand, ok := SuggestUpgrade(current, siblings)
	if !ok {
		t.Fatal("expected an upgrade candidate")
	}
	if cand.RecommendedFormat != "flac" {
		t.Errorf("RecommendedFormat = %s, want flac", cand.RecommendedFormat)
	}
	if cand.PotentialQualityGain != 40 {
		t.Errorf("PotentialQualityGain = %d, want 40", cand.PotentialQualityGain)
	}
}

func TestSuggestUpgradeNoneWhenGainTooSmall(t *testing.T) {
	current := store.LibraryFile{ID: 1, Format: "mp3", QualityScore: 88}
	siblings := []store.LibraryFile{
		{ID: 2, Format: "mp3", QualityScore: 90},
	}
	if _, ok := SuggestUpgrade(current, siblings); ok {
		t.Error("expected no upgrade candidate for a marginal gain")
	}
}

func TestSuggestUpgradeNoneWhenNoBetterSibling(t *testing.T) {
	current := store.LibraryFile{ID: 1, Format: "flac", QualityScore: 95}
	siblings := []store.LibraryFile{
		{ID: 2, Format: "mp3", QualityScore: 50},
	}
	if _, ok := SuggestUpgrade(current, siblings); ok {
		t.Error("expected no upgrade candidate when current is already best")
	}
}
