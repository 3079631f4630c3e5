// Package audiotag parses audio container tags and stream properties
// for the formats music-tools indexes: MP3, FLAC, M4A, WAV, OGG, OPUS.
package audiotag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	flacfmt "github.com/go-flac/go-flac"
	"github.com/go-flac/flacvorbis"

	"github.com/loungecrasher/music-tools/internal/errs"
)

// BitrateMode describes whether a lossy stream was encoded at a
// constant or variable bitrate. Lossless formats leave it empty.
type BitrateMode string

const (
	ModeCBR BitrateMode = "cbr"
	ModeVBR BitrateMode = "vbr"
)

// Properties is the set of tag and stream facts the rest of the
// pipeline needs: the Hasher, Quality Scorer, and Duplicate Checker
// all consume this struct directly.
type Properties struct {
	Format      string // lowercase extension, no dot: "mp3", "flac", ...
	Artist      *string
	Title       *string
	Album       *string
	Year        *int
	Duration    time.Duration
	Bitrate     int // kbps, 0 if unknown
	SampleRate  int // Hz, 0 if unknown
	BitDepth    int // lossless formats only, 0 otherwise
	Channels    int
	BitrateMode BitrateMode
}

// supportedExt is the set of extensions the reader accepts, per spec.
var supportedExt = map[string]bool{
	"mp3": true, "flac": true, "m4a": true, "wav": true, "ogg": true, "opus": true,
}

// Read parses path and returns its tag and stream properties. It never
// mutates the file. Unknown extensions return errs.ErrUnsupportedFormat;
// an unparseable or unreadable container returns errs.ErrCorruptFile;
// a failure to open the file is wrapped as *errs.Error with
// errs.KindFile.
func Read(path string) (*Properties, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !supportedExt[ext] {
		return nil, errs.ErrUnsupportedFormat
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errs.File("open file", err)
	}
	defer f.Close()

	switch ext {
	case "flac":
		return readFLAC(path)
	case "wav":
		return readWAV(f)
	case "mp3":
		return readMP3(f)
	default: // m4a, ogg, opus
		return readTagOnly(f, ext)
	}
}

// readTagOnly covers containers dhowden/tag parses (M4A atoms, Vorbis
// comments in OGG/OPUS) where this reader does not attempt independent
// stream-property extraction; bitrate and sample rate are left unknown
// and scored as such (spec §4.3 treats unknown as the lowest bucket).
func readTagOnly(f *os.File, ext string) (*Properties, error) {
	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, errs.ErrCorruptFile
	}
	return tagsToProperties(m, ext), nil
}

func tagsToProperties(m tag.Metadata, ext string) *Properties {
	p := &Properties{
		Format: ext,
		Artist: trimmedOrNil(m.Artist()),
		Title:  trimmedOrNil(m.Title()),
		Album:  trimmedOrNil(m.Album()),
	}
	if y := m.Year(); y > 0 {
		p.Year = &y
	}
	return p
}

// readFLAC walks the FLAC container with go-flac to pull STREAMINFO
// (sample rate, bit depth, duration) and the VORBIS_COMMENT block
// (artist/title/album/year) via flacvorbis, rather than parsing raw ID3
// frames — FLAC carries no ID3 data by default.
func readFLAC(path string) (*Properties, error) {
	file, err := flacfmt.ParseFile(path)
	if err != nil {
		return nil, errs.ErrCorruptFile
	}
	if len(file.Meta) == 0 {
		return nil, errs.ErrCorruptFile
	}

	p := &Properties{Format: "flac"}
	for _, block := range file.Meta {
		switch block.Type {
		case flacfmt.StreamInfo:
			si, err := parseStreamInfo(block.Data)
			if err != nil {
				return nil, errs.ErrCorruptFile
			}
			p.SampleRate = si.sampleRate
			p.BitDepth = si.bitDepth
			p.Channels = si.channels
			if si.sampleRate > 0 && si.totalSamples > 0 {
				p.Duration = time.Duration(si.totalSamples) * time.Second / time.Duration(si.sampleRate)
			}
		case flacfmt.VorbisComment:
			comment, err := flacvorbis.ParseFromMetaDataBlock(*block)
			if err != nil {
				continue
			}
			p.Artist = trimmedOrNil(firstTag(comment, flacvorbis.FIELD_ARTIST))
			p.Title = trimmedOrNil(firstTag(comment, flacvorbis.FIELD_TITLE))
			p.Album = trimmedOrNil(firstTag(comment, flacvorbis.FIELD_ALBUM))
			if y := firstTag(comment, flacvorbis.FIELD_DATE); y != "" {
				if yr, ok := parseYear(y); ok {
					p.Year = &yr
				}
			}
		}
	}
	if p.SampleRate == 0 {
		return nil, errs.ErrCorruptFile
	}
	return p, nil
}

func firstTag(c *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	vals, err := c.Get(field)
	if err != nil || len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func parseYear(s string) (int, bool) {
	var y int
	if _, err := fmt.Sscanf(s, "%4d", &y); err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

type streamInfo struct {
	sampleRate   int
	bitDepth     int
	channels     int
	totalSamples int64
}

// parseStreamInfo decodes the 34-byte STREAMINFO payload per the FLAC
// format spec (big-endian bitfields):
//
//	bits  80–99:  sample rate (20 bits)
//	bits 100–102: channels − 1 (3 bits)
//	bits 103–107: bits per sample − 1 (5 bits)
//	bits 108–143: total samples (36 bits)
func parseStreamInfo(data []byte) (streamInfo, error) {
	if len(data) < 18 {
		return streamInfo{}, fmt.Errorf("streaminfo too short: %d bytes", len(data))
	}
	sampleRate := int(uint32(data[10])<<12 | uint32(data[11])<<4 | uint32(data[12])>>4)
	channels := int((data[12]>>1)&0x07) + 1
	bitDepth := int((data[12]&0x01)<<4|data[13]>>4) + 1
	totalSamples := int64(data[13]&0x0F)<<32 |
		int64(data[14])<<24 | int64(data[15])<<16 |
		int64(data[16])<<8 | int64(data[17])
	return streamInfo{
		sampleRate:   sampleRate,
		bitDepth:     bitDepth,
		channels:     channels,
		totalSamples: totalSamples,
	}, nil
}

// trimmedOrNil returns nil for an empty or whitespace-only string, a
// pointer to the trimmed value otherwise — tags are absent, not empty,
// per spec.
func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
