package vetter

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteExports writes up to three plain-text, UTF-8, LF-terminated
// artifacts into dir: new_songs.txt, duplicates.txt, uncertain.txt.
// Each enabled flag controls whether that file is produced at all;
// omitted categories are simply not written.
func (r *Report) WriteExports(dir string, newFile, dupesFile, uncertainFile bool) error {
	if newFile {
		if err := writeEntries(filepath.Join(dir, "new_songs.txt"), r.New, false); err != nil {
			return err
		}
	}
	if dupesFile {
		if err := writeEntries(filepath.Join(dir, "duplicates.txt"), r.Duplicates, true); err != nil {
			return err
		}
	}
	if uncertainFile {
		if err := writeEntries(filepath.Join(dir, "uncertain.txt"), r.Uncertain, true); err != nil {
			return err
		}
	}
	return nil
}

// writeEntries renders one line per entry. withMatch appends the
// " → <match_path> (<confidence%>)" suffix for duplicate/uncertain
// lists; both this richer form and the bare-path form are accepted by
// ParseExportLine, per spec §6's "parsers MUST accept both forms".
func writeEntries(path string, entries []Entry, withMatch bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if withMatch && e.Match != nil {
			fmt.Fprintf(w, "%s → %s (%.0f%%)\n", e.Path, e.Match.Path, e.Confidence*100)
		} else {
			fmt.Fprintf(w, "%s\n", e.Path)
		}
	}
	return w.Flush()
}

// ParsedLine is one decoded export line: a candidate path and,
// when present, the matched library path and confidence it carries.
type ParsedLine struct {
	Path          string
	MatchPath     string
	ConfidencePct float64
	HasMatch      bool
}

// ParseExportLine accepts both the bare-path form and the richer
// " → <match_path> (<confidence%>)" form, per spec §6.
func ParseExportLine(line string) ParsedLine {
	const sep = " → "
	idx := strings.Index(line, sep)
	if idx < 0 {
		return ParsedLine{Path: line}
	}
	path := line[:idx]
	rest := line[idx+len(sep):]

	open := strings.LastIndex(rest, "(")
	shut := strings.LastIndex(rest, ")")
	if open < 0 || shut < 0 || shut < open {
		return ParsedLine{Path: path, MatchPath: strings.TrimSpace(rest), HasMatch: true}
	}
	matchPath := strings.TrimSpace(rest[:open])
	pctStr := strings.TrimSuffix(strings.TrimSpace(rest[open+1:shut]), "%")
	pct, _ := strconv.ParseFloat(pctStr, 64)
	return ParsedLine{Path: path, MatchPath: matchPath, ConfidencePct: pct, HasMatch: true}
}
