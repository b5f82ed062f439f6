// Package chunker splits long text into overlapping passages for embedding.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxSize is the maximum chunk length in bytes.
	DefaultMaxSize = 1000
	// DefaultOverlap is how many bytes adjacent chunks share.
	DefaultOverlap = 200
)

// Sentence-ending boundaries: terminal punctuation followed by whitespace,
// or a blank line. Matches are anchored by their end offset.
var sentenceEnds = []*regexp.Regexp{
	regexp.MustCompile(`\.\s+`),
	regexp.MustCompile(`!\s+`),
	regexp.MustCompile(`\?\s+`),
	regexp.MustCompile(`\n\n`),
}

// Chunk splits text into chunks of at most maxSize bytes with the given
// overlap. Cut points prefer the furthest sentence boundary found within
// the last overlap bytes of the window, so chunks rarely split
// mid-sentence. Every byte of input is covered by at least one chunk.
// Non-positive maxSize and negative overlap fall back to the defaults.
func Chunk(text string, maxSize, overlap int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= maxSize {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			// Never cut inside a multi-byte rune.
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if cut := furthestBoundary(text, start, end, overlap); cut > start {
				end = cut
			}
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Advance by at least one byte so the loop terminates even when
		// overlap >= maxSize.
		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
		for start < len(text) && !utf8.RuneStart(text[start]) {
			start++
		}
	}

	return chunks
}

// furthestBoundary scans the last overlap bytes of the window [start,end)
// for sentence-ending boundaries and returns the end offset of the
// furthest one, or -1 if none is found.
func furthestBoundary(text string, start, end, overlap int) int {
	searchStart := end - overlap
	if searchStart < start {
		searchStart = start
	}
	for searchStart > 0 && !utf8.RuneStart(text[searchStart]) {
		searchStart--
	}

	best := -1
	window := text[searchStart:end]
	for _, re := range sentenceEnds {
		for _, loc := range re.FindAllStringIndex(window, -1) {
			if cut := searchStart + loc[1]; cut > best {
				best = cut
			}
		}
	}
	return best
}
