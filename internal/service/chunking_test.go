package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertCoverage(t *testing.T, text string, chunks []TextChunk) {
	t.Helper()
	require.NotEmpty(t, chunks)
	runes := []rune(text)
	assert.Equal(t, 0, chunks[0].StartChar)
	assert.Equal(t, len(runes), chunks[len(chunks)-1].EndChar)
	for i, c := range chunks {
		assert.LessOrEqual(t, c.StartChar, c.EndChar)
		assert.Equal(t, strings.TrimSpace(string(runes[c.StartChar:c.EndChar])), c.Text, "chunk %d text", i)
		if i > 0 {
			assert.LessOrEqual(t, c.StartChar, chunks[i-1].EndChar, "gap before chunk %d", i)
			assert.Greater(t, c.EndChar, chunks[i-1].EndChar, "chunk %d does not advance", i)
		}
	}
}

func TestChunker_HeadingAndSentences(t *testing.T) {
	text := "# Title\n\nHello world. This is a test."
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 4, OverlapTokens: 1}, EstimateTokenCounter{})

	chunks := chunker.Chunk(text)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "# Title"))
	assert.Equal(t, "Hello world.", chunks[1].Text)
	assertCoverage(t, text, chunks)
}

func TestChunker_Overlap(t *testing.T) {
	text := "One. Two. Three. Four."
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 4, OverlapTokens: 2}, EstimateTokenCounter{})

	chunks := chunker.Chunk(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "One. Two.", chunks[0].Text)
	assert.Equal(t, "Two. Three.", chunks[1].Text)
	assert.Equal(t, "Three. Four.", chunks[2].Text)
	assert.Equal(t, 0, chunks[0].StartChar)
	assert.Equal(t, 10, chunks[0].EndChar)
	assert.Equal(t, 5, chunks[1].StartChar)
	assert.Equal(t, 17, chunks[1].EndChar)
	assertCoverage(t, text, chunks)
}

func TestChunker_OverlapLargerThanChunk(t *testing.T) {
	text := "One. Two. Three."
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 4, OverlapTokens: 100}, EstimateTokenCounter{})

	chunks := chunker.Chunk(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Two. Three.", chunks[1].Text)
	assertCoverage(t, text, chunks)
}

func TestChunker_OversizedUnitIsOwnChunk(t *testing.T) {
	long := "A very long sentence indeed. "
	text := "Short. " + long + "End."
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 2, OverlapTokens: 1}, EstimateTokenCounter{})

	chunks := chunker.Chunk(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Short.", chunks[0].Text)
	assert.Equal(t, strings.TrimSpace(long), chunks[1].Text)
	assert.Equal(t, "End.", chunks[2].Text)
	assertCoverage(t, text, chunks)
}

func TestChunker_EmptyInput(t *testing.T) {
	chunker := NewChunker(DefaultChunkConfig(), nil)

	assert.Empty(t, chunker.Chunk(""))
	assert.Empty(t, chunker.Chunk("  \n\n\t "))
}

func TestChunker_TrailingBlankLinesExtendLastChunk(t *testing.T) {
	text := "Only one line.\n\n\n"
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 100, OverlapTokens: 10}, nil)

	chunks := chunker.Chunk(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Only one line.", chunks[0].Text)
	assertCoverage(t, text, chunks)
}

func TestChunker_NormalizesLineEndings(t *testing.T) {
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 100}, nil)

	chunks := chunker.Chunk("# Heading\r\nBody text.\r\n")

	require.Len(t, chunks, 1)
	assert.Equal(t, "# Heading\nBody text.", chunks[0].Text)
	assert.Equal(t, 21, chunks[0].EndChar)
}

func TestChunker_CoverageOnLongDocument(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("## Chapter ")
		b.WriteString(strings.Repeat("I", i%3+1))
		b.WriteString("\n\nThe rain fell on the quiet town. Nobody answered the door! Why would they?\n\n")
	}
	text := b.String()
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 40, OverlapTokens: 10}, EstimateTokenCounter{})

	chunks := chunker.Chunk(text)

	assert.Greater(t, len(chunks), 10)
	assertCoverage(t, text, chunks)
}

func TestDetectChapter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *int
	}{
		{"markdown chapter heading", "# Chapter 3\nIt was night.", intPtr(3)},
		{"second level heading", "## CHAPTER 12\nMore.", intPtr(12)},
		{"plain chapter", "Chapter 5 opens here", intPtr(5)},
		{"abbreviation", "Ch. 7 - The Storm", intPtr(7)},
		{"numbered heading", "## 4. The Return\nText", intPtr(4)},
		{"part", "Part 2", intPtr(2)},
		{"section", "see section 9", intPtr(9)},
		{"beyond fifth line", "a\nb\nc\nd\ne\nChapter 6", nil},
		{"no marker", "It was a dark and stormy night.", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectChapter(tt.text))
		})
	}
}

func TestChunker_SetsChapter(t *testing.T) {
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 200}, nil)

	chunks := chunker.Chunk("# Chapter 2\n\nShe left at dawn.")

	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Chapter)
	assert.Equal(t, 2, *chunks[0].Chapter)
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t,
		[]string{"Wait... ", "What?! ", "Fine.\n", "done"},
		splitSentences("Wait... What?! Fine.\ndone"))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 1, EstimateTokens("héé"))
}

func TestNewTokenCounter(t *testing.T) {
	assert.IsType(t, EstimateTokenCounter{}, NewTokenCounter("estimate"))
	assert.IsType(t, &TiktokenCounter{}, NewTokenCounter("tiktoken"))
}

func intPtr(n int) *int { return &n }

func TestIsHeading(t *testing.T) {
	for _, line := range []string{"# Title", "## Chapter 2", "###### Deep", "#", "##\tTabbed"} {
		assert.True(t, isHeading(line), line)
	}
	for _, line := range []string{"#hashtag", "####### Seven", "#1 bestseller", "Not # a heading"} {
		assert.False(t, isHeading(line), line)
	}
}

func TestChunker_HashtagLineStaysInParagraph(t *testing.T) {
	text := "#hashtag was trending\nacross the feed."
	chunker := NewChunker(ChunkConfig{MaxTokensPerChunk: 100}, EstimateTokenCounter{})

	units := chunker.splitUnits(text)

	require.Len(t, units, 1)
	assert.Equal(t, text, units[0].text)
	assert.False(t, units[0].blank)

	heading := chunker.splitUnits("# Title\nacross the feed.")
	require.Len(t, heading, 2)
	assert.Equal(t, "# Title\n", heading[0].text)
}
