package audiotag

import (
	"io"
	"os"

	"github.com/dhowden/tag"
	"github.com/loungecrasher/music-tools/internal/errs"
)

// Layer III bitrate tables (kbps) indexed by the header's 4-bit
// bitrate index: mp3BitrateTableV1L3 for MPEG-1, mp3BitrateTableV2L3
// for MPEG-2 and MPEG-2.5. Layer is always III for the files this
// reader targets.
var mp3BitrateTableV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
var mp3BitrateTableV2L3 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}

var mp3SampleRateTableV1 = [4]int{44100, 48000, 32000, 0}
var mp3SampleRateTableV2 = [4]int{22050, 24000, 16000, 0}
var mp3SampleRateTableV25 = [4]int{11025, 12000, 8000, 0}

// readMP3 reads tags via dhowden/tag (ID3v1/v2), then independently
// scans for the first valid MPEG frame sync to recover bitrate, sample
// rate, and channel count — dhowden/tag exposes none of those. A
// Xing/Info frame immediately after the sync marks the stream VBR.
func readMP3(f *os.File) (*Properties, error) {
	m, err := tag.ReadFrom(f)
	if err != nil && err != tag.ErrNoTagsFound {
		return nil, errs.ErrCorruptFile
	}

	var p *Properties
	if m != nil {
		p = tagsToProperties(m, "mp3")
	} else {
		p = &Properties{Format: "mp3"}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errs.ErrCorruptFile
	}
	frame, ok := findMP3Frame(f)
	if !ok {
		return nil, errs.ErrCorruptFile
	}
	p.SampleRate = frame.sampleRate
	p.Bitrate = frame.bitrateKbps
	p.Channels = frame.channels
	p.BitrateMode = frame.mode
	return p, nil
}

type mp3Frame struct {
	sampleRate  int
	bitrateKbps int
	channels    int
	mode        BitrateMode
}

// findMP3Frame scans up to 256KiB for an MPEG audio frame sync
// (11 set bits), then decodes the 4-byte header. It checks the bytes
// following the header for a "Xing"/"Info" marker (VBR) or treats the
// stream as CBR otherwise — a full VBR-header parse is unnecessary
// since only the bitrate_mode classification is needed.
func findMP3Frame(f *os.File) (mp3Frame, bool) {
	const scanLimit = 256 * 1024
	buf := make([]byte, 4096)
	var window []byte
	read := 0

	for read < scanLimit {
		n, err := f.Read(buf)
		if n > 0 {
			window = append(window, buf[:n]...)
		}
		for i := 0; i+4 <= len(window); i++ {
			if window[i] == 0xFF && window[i+1]&0xE0 == 0xE0 {
				if frame, ok := decodeMP3Header(window[i : i+4]); ok {
					mode := ModeCBR
					if i+8 <= len(window) && looksLikeVBRHeader(window[i+4:min(i+200, len(window))]) {
						mode = ModeVBR
					}
					frame.mode = mode
					return frame, true
				}
			}
		}
		if len(window) > 8192 {
			window = window[len(window)-8:]
		}
		read += n
		if err != nil {
			break
		}
	}
	return mp3Frame{}, false
}

func looksLikeVBRHeader(b []byte) bool {
	s := string(b)
	return containsAny(s, "Xing", "Info", "VBRI")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) {
			for i := 0; i+len(sub) <= len(s); i++ {
				if s[i:i+len(sub)] == sub {
					return true
				}
			}
		}
	}
	return false
}

// decodeMP3Header decodes a 4-byte MPEG frame header into sample rate,
// bitrate, and channel count. Only Layer III (the overwhelming common
// case for ".mp3" files) is supported; other layers are rejected so
// the scan continues looking for a genuine sync.
func decodeMP3Header(h []byte) (mp3Frame, bool) {
	versionBits := (h[1] >> 3) & 0x03
	layerBits := (h[1] >> 1) & 0x03
	if layerBits != 0x01 { // 01 = Layer III
		return mp3Frame{}, false
	}
	bitrateIdx := (h[2] >> 4) & 0x0F
	sampleRateIdx := (h[2] >> 2) & 0x03
	channelMode := (h[3] >> 6) & 0x03
	if bitrateIdx == 0x0F || sampleRateIdx == 0x03 {
		return mp3Frame{}, false
	}

	var bitrate, sampleRate int
	switch versionBits {
	case 0x03: // MPEG-1
		bitrate = mp3BitrateTableV1L3[bitrateIdx]
		sampleRate = mp3SampleRateTableV1[sampleRateIdx]
	case 0x02: // MPEG-2
		bitrate = mp3BitrateTableV2L3[bitrateIdx]
		sampleRate = mp3SampleRateTableV2[sampleRateIdx]
	case 0x00: // MPEG-2.5
		bitrate = mp3BitrateTableV2L3[bitrateIdx]
		sampleRate = mp3SampleRateTableV25[sampleRateIdx]
	default:
		return mp3Frame{}, false
	}
	if bitrate == 0 || sampleRate == 0 {
		return mp3Frame{}, false
	}

	channels := 2
	if channelMode == 0x03 {
		channels = 1
	}
	return mp3Frame{sampleRate: sampleRate, bitrateKbps: bitrate, channels: channels}, true
}

