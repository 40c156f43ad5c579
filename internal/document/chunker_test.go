package document

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/manual-ingest/internal/segment"
)

// testConfig keeps budgets small so fixtures stay readable.
func testConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:    20,
		ChunkOverlap: 5,
		MinChunkSize: 5,
		MaxChunkSize: 30,
	}
}

// para builds a paragraph of n distinct words.
func para(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(words, " ")
}

func TestSemanticChunker_Chunk(t *testing.T) {
	counter := segment.NewTokenCounter()

	t.Run("NoHeadingsSingleSection", func(t *testing.T) {
		chunker := NewSemanticChunker(testConfig(), counter)
		chunks := chunker.Chunk("manual", para("w", 10), 0)

		require.Len(t, chunks, 1)
		assert.Equal(t, "manual_s0_c0", chunks[0].ChunkID)
		assert.Equal(t, "Document", chunks[0].SectionPath)
		assert.Equal(t, 1, chunks[0].Page)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		chunker := NewSemanticChunker(testConfig(), counter)
		chunks := chunker.Chunk("manual", "", 0)
		assert.Empty(t, chunks)
		assert.NotNil(t, chunks)
	})

	t.Run("UndersizedSectionDropped", func(t *testing.T) {
		chunker := NewSemanticChunker(testConfig(), counter)
		// 2 words is about 3 tokens, below the minimum of 5
		chunks := chunker.Chunk("manual", "# Notes\n\ntwo words", 0)
		assert.Empty(t, chunks)
	})

	t.Run("HeadingSectionsAndPaths", func(t *testing.T) {
		chunker := NewSemanticChunker(testConfig(), counter)
		markdown := "# Installation\n\n" + para("a", 10) + "\n\n## Wiring\n\n" + para("b", 10)

		chunks := chunker.Chunk("manual", markdown, 0)
		require.Len(t, chunks, 2)

		assert.Equal(t, "manual_s0_c0", chunks[0].ChunkID)
		assert.Equal(t, "Installation", chunks[0].SectionPath)
		assert.Equal(t, "manual_s1_c0", chunks[1].ChunkID)
		assert.Equal(t, "Installation > Wiring", chunks[1].SectionPath)
	})

	t.Run("BacktrackingPathSkipsDeeperEarlierSections", func(t *testing.T) {
		chunker := NewSemanticChunker(testConfig(), counter)
		markdown := "# Install\n\n" + para("a", 10) +
			"\n\n## Electrical\n\n" + para("b", 10) +
			"\n\n### Grounding\n\n" + para("c", 10) +
			"\n\n## Hydraulic\n\n" + para("d", 10)

		chunks := chunker.Chunk("manual", markdown, 0)
		require.Len(t, chunks, 4)
		assert.Equal(t, "Install > Electrical > Grounding", chunks[2].SectionPath)
		// the level-3 section between does not appear in a sibling's path
		assert.Equal(t, "Install > Hydraulic", chunks[3].SectionPath)
	})

	t.Run("OversizedSectionSplitWithOverlap", func(t *testing.T) {
		chunker := NewSemanticChunker(testConfig(), counter)
		p1 := para("first", 10)
		p2 := para("second", 10)
		p3 := para("third", 10)
		// 30 words is about 39 tokens, over the max of 30
		content := p1 + "\n\n" + p2 + "\n\n" + p3

		chunks := chunker.Chunk("manual", content, 0)
		require.Len(t, chunks, 3)

		assert.Equal(t, p1, chunks[0].Text)
		assert.Equal(t, "manual_s0_c0", chunks[0].ChunkID)
		assert.Equal(t, "manual_s0_c1", chunks[1].ChunkID)
		assert.Equal(t, "manual_s0_c2", chunks[2].ChunkID)

		// each chunk opens with the previous chunk's closing paragraph,
		// copied verbatim
		assert.True(t, strings.HasPrefix(chunks[1].Text, p1))
		assert.True(t, strings.HasSuffix(chunks[1].Text, p2))
		assert.True(t, strings.HasPrefix(chunks[2].Text, p2))
		assert.True(t, strings.HasSuffix(chunks[2].Text, p3))
	})

	t.Run("ChunkIndexAdvancesAcrossDroppedChunks", func(t *testing.T) {
		chunker := NewSemanticChunker(ChunkerConfig{
			ChunkSize:    10,
			ChunkOverlap: 3,
			MinChunkSize: 8,
			MaxChunkSize: 20,
		}, counter)

		pa := para("a", 3)  // ~4 tokens, below the minimum when flushed alone
		pb := para("b", 15) // ~20 tokens
		pc := para("c", 3)
		content := pa + "\n\n" + pb + "\n\n" + pc

		chunks := chunker.Chunk("manual", content, 0)
		require.Len(t, chunks, 2)

		// the first would-be chunk was dropped, but its index is not reused
		assert.Equal(t, "manual_s0_c1", chunks[0].ChunkID)
		assert.Equal(t, "manual_s0_c2", chunks[1].ChunkID)
	})

	t.Run("TokenCountsRecorded", func(t *testing.T) {
		chunker := NewSemanticChunker(testConfig(), counter)
		chunks := chunker.Chunk("manual", para("w", 10), 0)
		require.Len(t, chunks, 1)
		assert.Equal(t, counter.Count(chunks[0].Text), chunks[0].TokenCount)
	})

	t.Run("Deterministic", func(t *testing.T) {
		chunker := NewSemanticChunker(testConfig(), counter)
		markdown := "# A\n\n" + para("a", 25) + "\n\n" + para("b", 25) + "\n\n## B\n\n" + para("c", 10)

		first := chunker.Chunk("manual", markdown, 5)
		second := chunker.Chunk("manual", markdown, 5)
		assert.Equal(t, first, second)
	})
}

func TestEstimatePage(t *testing.T) {
	t.Run("LinearInterpolation", func(t *testing.T) {
		assert.Equal(t, 1, estimatePage(0, 5, 10))
		assert.Equal(t, 5, estimatePage(2, 5, 10))
		assert.Equal(t, 9, estimatePage(4, 5, 10))
	})

	t.Run("UnknownPageCount", func(t *testing.T) {
		assert.Equal(t, 1, estimatePage(0, 5, 0))
		assert.Equal(t, 1, estimatePage(4, 5, 0))
	})

	t.Run("NoSections", func(t *testing.T) {
		assert.Equal(t, 1, estimatePage(0, 0, 10))
	})
}

func TestSplitByHeadings(t *testing.T) {
	t.Run("NoHeadings", func(t *testing.T) {
		sections := splitByHeadings("just body text")
		require.Len(t, sections, 1)
		assert.Equal(t, "Document", sections[0].heading)
		assert.Equal(t, 0, sections[0].level)
	})

	t.Run("LevelsFromHashCount", func(t *testing.T) {
		sections := splitByHeadings("# One\n\nalpha\n\n### Three\n\nbeta")
		require.Len(t, sections, 2)
		assert.Equal(t, 1, sections[0].level)
		assert.Equal(t, "One", sections[0].heading)
		assert.Equal(t, "alpha", sections[0].content)
		assert.Equal(t, 3, sections[1].level)
		assert.Equal(t, "beta", sections[1].content)
	})
}
