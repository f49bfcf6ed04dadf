package text

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Strategy selects which natural boundaries the splitter prefers.
type Strategy string

const (
	StrategyParagraph Strategy = "paragraph"
	StrategyMarkdown  Strategy = "recursive-markdown"
	StrategySentence  Strategy = "sentence"
)

// DefaultChunkSize is the chunk budget in characters (Unicode code points).
const DefaultChunkSize = 500

// ParseStrategy maps a wire value to a Strategy. An empty value is the
// paragraph strategy; an unknown one also falls back to it and reports false.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case "", StrategyParagraph:
		return StrategyParagraph, true
	case StrategyMarkdown:
		return StrategyMarkdown, true
	case StrategySentence:
		return StrategySentence, true
	default:
		return StrategyParagraph, false
	}
}

// Chunk is one trimmed, non-empty slice of a document. Index is the
// zero-based emission order.
type Chunk struct {
	Index int
	Text  string
}

var (
	headingRe   = regexp.MustCompile(`(?m)^#{1,6}\s`)
	fenceRe     = regexp.MustCompile("(?m)^```[^\\n]*$")
	paragraphRe = regexp.MustCompile(`\n[ \t]*\n\s*`)
	sentenceRe  = regexp.MustCompile(`[.!?]+["')\]]*\s+`)
	wordRe      = regexp.MustCompile(`\s+`)
)

// levelFunc cuts text into pieces whose concatenation is exactly text.
type levelFunc func(text string) []string

// Splitter splits text into bounded chunks. Boundaries are tried from the
// coarsest level down; a piece that still exceeds the budget after the last
// level is hard cut on code point boundaries.
type Splitter struct {
	maxChars int
	levels   []levelFunc
}

func NewSplitter(maxChars int, strategy Strategy) *Splitter {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}

	var levels []levelFunc
	switch strategy {
	case StrategyMarkdown:
		levels = []levelFunc{splitMarkdownSections, splitParagraphs, splitLines, splitSentences, splitWords}
	case StrategySentence:
		levels = []levelFunc{splitSentences, splitWords}
	default:
		levels = []levelFunc{splitParagraphs, splitLines, splitSentences, splitWords}
	}

	return &Splitter{maxChars: maxChars, levels: levels}
}

// Split is deterministic: the same text always yields the same chunks.
// Empty or whitespace-only text yields no chunks.
func (s *Splitter) Split(text string) []Chunk {
	var parts []string
	s.split(text, 0, &parts)

	chunks := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, Chunk{Index: i, Text: p})
	}
	return chunks
}

// Split is a convenience wrapper around NewSplitter(maxChars, strategy).Split.
func Split(text string, maxChars int, strategy Strategy) []Chunk {
	return NewSplitter(maxChars, strategy).Split(text)
}

func (s *Splitter) split(text string, level int, out *[]string) {
	if utf8.RuneCountInString(text) <= s.maxChars {
		emit(text, out)
		return
	}
	if level >= len(s.levels) {
		s.hardCut(text, out)
		return
	}

	pieces := s.levels[level](text)
	if len(pieces) <= 1 {
		s.split(text, level+1, out)
		return
	}

	var current strings.Builder
	currentLen := 0
	flush := func() {
		if currentLen > 0 {
			emit(current.String(), out)
			current.Reset()
			currentLen = 0
		}
	}

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if n > s.maxChars {
			flush()
			s.split(piece, level+1, out)
			continue
		}
		if currentLen+n > s.maxChars {
			flush()
		}
		current.WriteString(piece)
		currentLen += n
	}
	flush()
}

func (s *Splitter) hardCut(text string, out *[]string) {
	for len(text) > 0 {
		end, count := 0, 0
		for end < len(text) && count < s.maxChars {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
			count++
		}
		emit(text[:end], out)
		text = text[end:]
	}
}

func emit(text string, out *[]string) {
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		*out = append(*out, trimmed)
	}
}

// cutAt splits text at the given ascending byte offsets, dropping empty pieces.
func cutAt(text string, offsets []int) []string {
	pieces := make([]string, 0, len(offsets)+1)
	last := 0
	for _, off := range offsets {
		if off <= last || off >= len(text) {
			continue
		}
		pieces = append(pieces, text[last:off])
		last = off
	}
	if last < len(text) {
		pieces = append(pieces, text[last:])
	}
	return pieces
}

func cutAfterMatches(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringIndex(text, -1)
	offsets := make([]int, 0, len(matches))
	for _, m := range matches {
		offsets = append(offsets, m[1])
	}
	return cutAt(text, offsets)
}

func splitParagraphs(text string) []string { return cutAfterMatches(paragraphRe, text) }
func splitSentences(text string) []string  { return cutAfterMatches(sentenceRe, text) }
func splitWords(text string) []string      { return cutAfterMatches(wordRe, text) }

func splitLines(text string) []string {
	return strings.SplitAfter(text, "\n")
}

// splitMarkdownSections cuts before every heading and around fenced code
// blocks. Headings inside a fence are code, not structure.
func splitMarkdownSections(text string) []string {
	fences := fenceRe.FindAllStringIndex(text, -1)

	var offsets []int
	inFence := func(pos int) bool {
		for i := 0; i+1 < len(fences); i += 2 {
			if pos > fences[i][0] && pos < fences[i+1][1] {
				return true
			}
		}
		// An unclosed fence runs to the end of the document.
		if len(fences)%2 == 1 && pos > fences[len(fences)-1][0] {
			return true
		}
		return false
	}

	for i, f := range fences {
		if i%2 == 0 {
			offsets = append(offsets, f[0])
		} else {
			offsets = append(offsets, f[1])
		}
	}
	for _, h := range headingRe.FindAllStringIndex(text, -1) {
		if !inFence(h[0]) {
			offsets = append(offsets, h[0])
		}
	}

	slices.Sort(offsets)
	return cutAt(text, offsets)
}
