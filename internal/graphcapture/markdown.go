package graphcapture

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/openclaw/openclaw-mem/internal/capture"
	"github.com/openclaw/openclaw-mem/internal/errs"
	"github.com/openclaw/openclaw-mem/internal/statefile"
	"github.com/openclaw/openclaw-mem/internal/store"
)

const defaultMarkdownLookback = 24 * time.Hour

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)

// MarkdownReceipt is the bounded summary of one markdown-capture run.
type MarkdownReceipt struct {
	ScannedFiles    int `json:"scanned_files"`
	ChangedFiles    int `json:"changed_files"`
	Inserted        int `json:"inserted"`
	SkippedExisting int `json:"skipped_existing"`
	Errors          int `json:"errors"`
}

// MarkdownOptions configures one markdown-capture run.
type MarkdownOptions struct {
	StateDir        string
	IncludeExts     []string // e.g. []string{".md", ".markdown"}
	ExcludeGlobs    []string // filepath.Match patterns against the basename
	MinHeadingLevel int
	SinceHours      time.Duration
}

func defaultMarkdownOptions(o MarkdownOptions) MarkdownOptions {
	if len(o.IncludeExts) == 0 {
		o.IncludeExts = []string{".md", ".markdown"}
	}
	if o.MinHeadingLevel <= 0 {
		o.MinHeadingLevel = 2
	}
	if o.SinceHours <= 0 {
		o.SinceHours = defaultMarkdownLookback
	}
	return o
}

type markdownDetail struct {
	SourcePath         string    `json:"source_path"`
	Heading            string    `json:"heading"`
	HeadingLevel       int       `json:"heading_level"`
	StartLine          int       `json:"start_line"`
	EndLine            int       `json:"end_line"`
	MTime              time.Time `json:"mtime"`
	FileHash           string    `json:"file_hash"`
	SectionFingerprint string    `json:"section_fingerprint"`
}

type heading struct {
	text      string
	level     int
	startLine int
	endLine   int
}

// CaptureMarkdown walks root for markdown files matching opts, parses
// headings at opts.MinHeadingLevel or deeper, and inserts one
// observation per newly-seen section. Files are re-scanned only when
// their mtime advances past the stored cursor; a file seen for the
// first time is bounded to the opts.SinceHours lookback so an initial
// run over a large tree does not backfill its entire history.
func CaptureMarkdown(s *store.Store, root string, opts MarkdownOptions) (MarkdownReceipt, error) {
	opts = defaultMarkdownOptions(opts)
	statePath := filepath.Join(opts.StateDir, "graph-capture-md-state.json")

	var receipt MarkdownReceipt

	err := statefile.WithLock(statePath, func() error {
		state, err := LoadMarkdownState(statePath)
		if err != nil {
			return fmt.Errorf("graphcapture: load markdown state: %w", err)
		}

		files, err := discoverMarkdownFiles(root, opts)
		if err != nil {
			return fmt.Errorf("graphcapture: walk %s: %w", root, err)
		}
		receipt.ScannedFiles = len(files)

		for _, path := range files {
			info, err := os.Stat(path)
			if err != nil {
				receipt.Errors++
				continue
			}
			mtime := info.ModTime().UTC()

			cursor, seenBefore := state.FileMTimes[path]
			if seenBefore && !mtime.After(cursor) {
				continue
			}
			if !seenBefore && time.Since(mtime) > opts.SinceHours {
				state.FileMTimes[path] = mtime
				continue
			}
			receipt.ChangedFiles++

			data, err := os.ReadFile(path)
			if err != nil {
				receipt.Errors++
				continue
			}
			fileHash := fmt.Sprintf("%016x", xxhash.Sum64(data))

			lines := strings.Split(string(data), "\n")
			headings := parseHeadings(data, opts.MinHeadingLevel)
			basename := filepath.Base(path)
			for _, h := range headings {
				section := sectionBody(lines, h)
				fp := fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join([]string{path, h.text, section}, "\x1f")))
				if state.Seen[fp] {
					receipt.SkippedExisting++
					continue
				}

				detail, err := json.Marshal(markdownDetail{
					SourcePath:         path,
					Heading:            h.text,
					HeadingLevel:       h.level,
					StartLine:          h.startLine,
					EndLine:            h.endLine,
					MTime:              mtime,
					FileHash:           fileHash,
					SectionFingerprint: fp,
				})
				if err != nil {
					receipt.Errors++
					continue
				}

				summary := fmt.Sprintf("[MD] %s#%s", basename, h.text)
				hash := capture.ContentHash(store.KindNote, "graph.capture-md", summary, mtime)

				_, err = s.InsertObservation(store.NewObservation{
					TS:          mtime,
					Kind:        store.KindNote,
					ToolName:    "graph.capture-md",
					Summary:     summary,
					Detail:      detail,
					ContentHash: hash,
				})
				if err != nil && !errors.Is(err, errs.ErrDuplicate) {
					receipt.Errors++
					continue
				}

				state.Seen[fp] = true
				receipt.Inserted++
			}

			state.FileMTimes[path] = mtime
		}

		return state.Save(statePath)
	})

	return receipt, err
}

func discoverMarkdownFiles(root string, opts MarkdownOptions) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !hasIncludedExt(path, opts.IncludeExts) {
			return nil
		}
		if isExcluded(filepath.Base(path), opts.ExcludeGlobs) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// sectionBody returns the heading's own text plus the body lines
// between its heading line and the next same-or-shallower heading, used
// to derive a fingerprint that only changes when this section's own
// content changes, not when an unrelated section in the same file does.
func sectionBody(lines []string, h heading) string {
	start := h.startLine - 1
	end := h.endLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return h.text
	}
	return strings.TrimRight(strings.Join(lines[start:end], "\n"), "\n")
}

func hasIncludedExt(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func isExcluded(basename string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, basename); ok {
			return true
		}
	}
	return false
}

// parseHeadings scans lines for ATX-style markdown headings ("#",
// "##", ...) at minLevel or deeper, bounding each section from its
// heading line to the line before the next heading at the same or a
// shallower level (or end of file).
func parseHeadings(data []byte, minLevel int) []heading {
	var all []heading
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		m := headingPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		level := len(m[1])
		if level < minLevel {
			continue
		}
		all = append(all, heading{text: m[2], level: level, startLine: lineNo})
	}

	for i := range all {
		end := lineNo
		for j := i + 1; j < len(all); j++ {
			if all[j].level <= all[i].level {
				end = all[j].startLine - 1
				break
			}
		}
		all[i].endLine = end
	}
	return all
}
