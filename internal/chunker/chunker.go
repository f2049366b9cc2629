// Package chunker splits plain text and markdown into retrieval chunks.
// Chunk boundary policy (sizes, block merging) lives here, not in the
// retrieval core.
package chunker

import (
	"strings"
)

const (
	DefaultTargetSize = 400
	DefaultMaxSize    = 600
)

// Options configures chunking behavior.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default chunking options.
func DefaultOptions() Options {
	return Options{TargetSize: DefaultTargetSize, MaxSize: DefaultMaxSize}
}

// Piece is one chunk of the source text with its byte offsets.
type Piece struct {
	Text  string
	Start int
	End   int
}

// Split breaks text into pieces. Short text (<= MaxSize) returns a single
// piece.
func Split(text string, opts Options) []Piece {
	if opts.TargetSize <= 0 {
		opts = DefaultOptions()
	}
	if opts.MaxSize < opts.TargetSize {
		opts.MaxSize = opts.TargetSize
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) == 0 {
		return nil
	}
	if len(trimmed) <= opts.MaxSize {
		start := strings.Index(text, trimmed)
		return []Piece{{Text: trimmed, Start: start, End: start + len(trimmed)}}
	}

	blocks := splitBlocks(text)
	return mergeBlocks(blocks, opts)
}

// splitBlocks splits on heading lines and blank-line boundaries, keeping
// byte offsets into the original text.
func splitBlocks(text string) []Piece {
	var blocks []Piece
	var current []string
	offset := 0
	blockStart := 0

	flush := func(end int) {
		joined := strings.Join(current, "\n")
		t := strings.TrimSpace(joined)
		if t != "" {
			lead := strings.Index(joined, t)
			blocks = append(blocks, Piece{Text: t, Start: blockStart + lead, End: blockStart + lead + len(t)})
		}
		current = nil
		blockStart = end
	}

	lines := strings.Split(text, "\n")
	prevEmpty := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") && len(current) > 0 {
			flush(offset)
		}
		if trimmed == "" {
			if prevEmpty && len(current) > 0 {
				flush(offset)
			}
			prevEmpty = true
		} else {
			prevEmpty = false
		}
		current = append(current, line)
		offset += len(line) + 1 // +1 for the newline
	}
	flush(offset)

	return blocks
}

// mergeBlocks combines small blocks up to the target size and hard-splits
// oversized ones.
func mergeBlocks(blocks []Piece, opts Options) []Piece {
	var results []Piece
	var accum Piece

	flushAccum := func() {
		if accum.Text == "" {
			return
		}
		if len(accum.Text) > opts.MaxSize {
			results = append(results, hardSplit(accum, opts)...)
		} else {
			results = append(results, accum)
		}
		accum = Piece{}
	}

	for _, b := range blocks {
		if accum.Text == "" {
			accum = b
			continue
		}
		if len(accum.Text)+2+len(b.Text) <= opts.TargetSize {
			accum.Text = accum.Text + "\n\n" + b.Text
			accum.End = b.End
		} else {
			flushAccum()
			accum = b
		}
	}
	flushAccum()

	return results
}

// hardSplit breaks a block that exceeds MaxSize on line boundaries.
func hardSplit(p Piece, opts Options) []Piece {
	lines := strings.Split(p.Text, "\n")
	var results []Piece
	var current []string
	curStart := p.Start
	curLen := 0
	offset := p.Start

	flush := func() {
		joined := strings.Join(current, "\n")
		t := strings.TrimSpace(joined)
		if t != "" {
			lead := strings.Index(joined, t)
			results = append(results, Piece{Text: t, Start: curStart + lead, End: curStart + lead + len(t)})
		}
		current = nil
		curLen = 0
	}

	for _, line := range lines {
		if curLen+len(line) > opts.TargetSize && len(current) > 0 {
			flush()
			curStart = offset
		}
		current = append(current, line)
		curLen += len(line) + 1
		offset += len(line) + 1
	}
	flush()

	return results
}
