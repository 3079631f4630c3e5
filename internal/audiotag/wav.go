package audiotag

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/loungecrasher/music-tools/internal/errs"
)

// readWAV parses a RIFF/WAVE container directly: the "fmt " chunk gives
// exact sample rate, channel count, bit depth, and byte rate (from
// which bitrate is exact, not estimated); an optional "LIST" INFO
// sub-chunk supplies artist/title/album via IART/INAM/IPRD tags.
// dhowden/tag has no WAV support, so this reader owns the whole
// container the way readFLAC owns FLAC.
func readWAV(f *os.File) (*Properties, error) {
	var riffHeader [12]byte
	if _, err := io.ReadFull(f, riffHeader[:]); err != nil {
		return nil, errs.ErrCorruptFile
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, errs.ErrCorruptFile
	}

	p := &Properties{Format: "wav"}
	sawFmt := false

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(f, chunkHeader[:]); err != nil {
			break // EOF ends the chunk walk.
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, body); err != nil || len(body) < 16 {
				return nil, errs.ErrCorruptFile
			}
			channels := int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate := int(binary.LittleEndian.Uint32(body[4:8]))
			byteRate := int(binary.LittleEndian.Uint32(body[8:12]))
			bitsPerSample := int(binary.LittleEndian.Uint16(body[14:16]))
			p.Channels = channels
			p.SampleRate = sampleRate
			p.BitDepth = bitsPerSample
			p.Bitrate = byteRate * 8 / 1000
			sawFmt = true
			if chunkSize%2 == 1 {
				f.Seek(1, io.SeekCurrent)
			}
		case "data":
			if sawFmt && p.SampleRate > 0 {
				frameSize := int64(p.Channels * p.BitDepth / 8)
				if frameSize > 0 {
					totalFrames := int64(chunkSize) / frameSize
					p.Duration = time.Duration(totalFrames) * time.Second / time.Duration(p.SampleRate)
				}
			}
			if err := skipChunk(f, chunkSize); err != nil {
				return p, finishWAV(p, sawFmt)
			}
		case "LIST":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, body); err == nil && len(body) >= 4 && string(body[0:4]) == "INFO" {
				parseWAVInfo(body[4:], p)
			}
			if chunkSize%2 == 1 {
				f.Seek(1, io.SeekCurrent)
			}
		default:
			if err := skipChunk(f, chunkSize); err != nil {
				break
			}
		}
	}
	return p, finishWAV(p, sawFmt)
}

func finishWAV(p *Properties, sawFmt bool) error {
	if !sawFmt {
		return errs.ErrCorruptFile
	}
	return nil
}

func skipChunk(f *os.File, size uint32) error {
	padded := int64(size)
	if size%2 == 1 {
		padded++
	}
	_, err := f.Seek(padded, io.SeekCurrent)
	return err
}

// parseWAVInfo walks the sub-chunks of a LIST/INFO body, mapping the
// handful of RIFF INFO tags this reader cares about.
func parseWAVInfo(body []byte, p *Properties) {
	i := 0
	for i+8 <= len(body) {
		id := string(body[i : i+4])
		size := int(binary.LittleEndian.Uint32(body[i+4 : i+8]))
		start := i + 8
		end := start + size
		if end > len(body) {
			return
		}
		val := trimmedOrNil(nullTerminated(body[start:end]))
		switch id {
		case "IART":
			p.Artist = val
		case "INAM":
			p.Title = val
		case "IPRD":
			p.Album = val
		}
		i = end
		if size%2 == 1 {
			i++
		}
	}
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
