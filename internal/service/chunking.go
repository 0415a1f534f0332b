package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cloo-solutions/inkwell/internal/domain"
)

// ChunkConfig controls how documents are split into retrieval windows.
type ChunkConfig struct {
	MaxTokensPerChunk int
	OverlapTokens     int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxTokensPerChunk: 800,
		OverlapTokens:     150,
	}
}

// TextChunk is one window produced by the Chunker. StartChar and EndChar are
// character offsets of the untrimmed span; Text is that span trimmed.
type TextChunk struct {
	Text      string `json:"text"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
	Chapter   *int   `json:"chapter,omitempty"`
}

// Chunker splits documents into overlapping, token-bounded windows.
type Chunker struct {
	cfg     ChunkConfig
	counter TokenCounter
}

// NewChunker creates a Chunker. A nil counter uses EstimateTokenCounter.
func NewChunker(cfg ChunkConfig, counter TokenCounter) *Chunker {
	if cfg.MaxTokensPerChunk <= 0 {
		cfg.MaxTokensPerChunk = DefaultChunkConfig().MaxTokensPerChunk
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	if counter == nil {
		counter = EstimateTokenCounter{}
	}
	return &Chunker{cfg: cfg, counter: counter}
}

type chunkUnit struct {
	text   string
	start  int
	end    int
	tokens int
	blank  bool
}

// Chunk splits text into ordered windows. Chunk spans cover the normalized
// text without gaps; consecutive chunks may overlap.
func (c *Chunker) Chunk(text string) []TextChunk {
	text = domain.NormalizeLineEndings(text)
	if strings.TrimSpace(text) == "" {
		return []TextChunk{}
	}

	units := c.splitUnits(text)
	maxTokens := c.cfg.MaxTokensPerChunk

	var (
		chunks    []TextChunk
		cur       []chunkUnit
		curTokens int
	)

	hasContent := func(us []chunkUnit) bool {
		for _, u := range us {
			if !u.blank {
				return true
			}
		}
		return false
	}
	closeChunk := func(us []chunkUnit) {
		chunks = append(chunks, c.buildChunk(us))
	}

	for _, u := range units {
		if u.tokens > maxTokens && !u.blank {
			if hasContent(cur) {
				closeChunk(cur)
				cur, curTokens = nil, 0
			}
			closeChunk(append(cur, u))
			cur, curTokens = nil, 0
			continue
		}

		if curTokens+u.tokens > maxTokens && hasContent(cur) {
			closeChunk(cur)
			budget := min(c.cfg.OverlapTokens, maxTokens-u.tokens)
			cur = c.overlapTail(cur, budget)
			curTokens = 0
			for _, o := range cur {
				curTokens += o.tokens
			}
		}

		cur = append(cur, u)
		curTokens += u.tokens
	}

	switch {
	case hasContent(cur):
		closeChunk(cur)
	case len(cur) > 0 && len(chunks) > 0:
		// trailing blank lines extend the last span
		chunks[len(chunks)-1].EndChar = cur[len(cur)-1].end
	}

	return chunks
}

// overlapTail returns the longest suffix of units whose tokens fit budget.
func (c *Chunker) overlapTail(units []chunkUnit, budget int) []chunkUnit {
	if budget <= 0 {
		return nil
	}
	total := 0
	i := len(units)
	for i > 0 {
		t := units[i-1].tokens
		if total+t > budget {
			break
		}
		total += t
		i--
	}
	if i == len(units) {
		return nil
	}
	tail := make([]chunkUnit, len(units)-i)
	copy(tail, units[i:])
	return tail
}

func (c *Chunker) buildChunk(units []chunkUnit) TextChunk {
	var b strings.Builder
	for _, u := range units {
		b.WriteString(u.text)
	}
	trimmed := strings.TrimSpace(b.String())
	return TextChunk{
		Text:      trimmed,
		StartChar: units[0].start,
		EndChar:   units[len(units)-1].end,
		Chapter:   detectChapter(trimmed),
	}
}

// splitUnits breaks text into headings, blank lines and sentences. The
// concatenation of all unit texts equals text.
func (c *Chunker) splitUnits(text string) []chunkUnit {
	var units []chunkUnit
	offset := 0
	add := func(s string, blank bool) {
		if s == "" {
			return
		}
		n := len([]rune(s))
		units = append(units, chunkUnit{
			text:   s,
			start:  offset,
			end:    offset + n,
			tokens: c.counter.CountTokens(s),
			blank:  blank,
		})
		offset += n
	}

	var para strings.Builder
	flush := func() {
		if para.Len() == 0 {
			return
		}
		for _, s := range splitSentences(para.String()) {
			add(s, strings.TrimSpace(s) == "")
		}
		para.Reset()
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
			add(line, true)
		case isHeading(trimmed):
			flush()
			add(line, false)
		default:
			para.WriteString(line)
		}
	}
	flush()

	return units
}

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

// splitSentences splits after terminal punctuation, keeping the following
// whitespace with the sentence.
// atxHeading is a markdown heading marker: one to six '#' followed by
// whitespace or the end of the line. "#hashtag" is body text.
var atxHeading = regexp.MustCompile(`^#{1,6}(?:[ \t]|$)`)

func isHeading(line string) bool {
	return atxHeading.MatchString(line)
}

func splitSentences(paragraph string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(paragraph, -1) {
		out = append(out, paragraph[last:loc[1]])
		last = loc[1]
	}
	if last < len(paragraph) {
		out = append(out, paragraph[last:])
	}
	return out
}

var chapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*#{1,2}\s*chapter\s+(\d+)`),
	regexp.MustCompile(`(?i)chapter\s+(\d+)`),
	regexp.MustCompile(`(?i)\bch\.\s*(\d+)`),
	regexp.MustCompile(`(?i)^\s*#{1,2}\s*(\d+)\.?(?:\s|$)`),
	regexp.MustCompile(`(?i)\bpart\s+(\d+)`),
	regexp.MustCompile(`(?i)\bsection\s+(\d+)`),
}

// detectChapter looks for a chapter marker in the first five lines.
func detectChapter(text string) *int {
	lines := strings.SplitN(text, "\n", 6)
	if len(lines) > 5 {
		lines = lines[:5]
	}
	for _, line := range lines {
		for _, re := range chapterPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return &n
		}
	}
	return nil
}
