package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/manual-ingest/internal/segment"
)

// DocumentChunk is a token-budgeted slice of a flat document, the output
// record of the non-fused ingestion path.
type DocumentChunk struct {
	ChunkID     string `json:"chunk_id"`
	DocID       string `json:"doc_id"`
	Text        string `json:"text"`
	Page        int    `json:"page"`
	SectionPath string `json:"section_path"`
	TokenCount  int    `json:"token_count"`
}

// ChunkerConfig carries the token budgets for the flat path.
type ChunkerConfig struct {
	ChunkSize    int // target tokens per chunk
	ChunkOverlap int // advisory overlap budget in tokens
	MinChunkSize int // chunks below this are dropped
	MaxChunkSize int // sections above this are split by paragraph
}

// DefaultChunkerConfig returns the standard budgets.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:    600,
		ChunkOverlap: 100,
		MinChunkSize: 100,
		MaxChunkSize: 1000,
	}
}

// headingPattern matches markdown-style heading lines (# through ######).
var headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// section is one heading-delimited region of the document.
type section struct {
	heading string
	content string
	level   int
}

// SemanticChunker splits heading-delimited text into token-bounded
// chunks with paragraph overlap. It serves the simpler ingestion
// variant and deliberately keeps its own section-path logic: this path
// walks completed sections backward, while the layout engine replays
// positioned headings forward, and the two produce different paths for
// the same outline.
type SemanticChunker struct {
	config  ChunkerConfig
	counter segment.Counter
	logger  *logrus.Logger
}

// ChunkerOption configures a SemanticChunker.
type ChunkerOption func(*SemanticChunker)

// WithChunkerLogger sets the logger.
func WithChunkerLogger(logger *logrus.Logger) ChunkerOption {
	return func(c *SemanticChunker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewSemanticChunker creates a chunker sharing the pipeline's token counter.
func NewSemanticChunker(config ChunkerConfig, counter segment.Counter, opts ...ChunkerOption) *SemanticChunker {
	c := &SemanticChunker{
		config:  config,
		counter: counter,
		logger:  logrus.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits a flat document into chunks. Pages are estimated by
// linear interpolation over the section index since flat input carries
// no positions. Empty input produces an empty slice, never an error.
func (c *SemanticChunker) Chunk(docID string, markdown string, totalPages int) []DocumentChunk {
	c.logger.WithField("doc_id", docID).Info("Chunking document")

	sections := splitByHeadings(markdown)

	chunks := make([]DocumentChunk, 0)
	for idx, sec := range sections {
		path := sectionPath(sections, idx)
		page := estimatePage(idx, len(sections), totalPages)
		chunks = append(chunks, c.splitSection(docID, sec.content, path, page, idx)...)
	}

	c.logger.WithFields(logrus.Fields{
		"doc_id": docID,
		"chunks": len(chunks),
	}).Info("Document chunked")

	return chunks
}

// splitByHeadings cuts the document at markdown heading lines. Without
// any heading the whole document becomes a single level-0 section.
func splitByHeadings(markdown string) []section {
	matches := headingPattern.FindAllStringSubmatchIndex(markdown, -1)
	if len(matches) == 0 {
		return []section{{heading: "Document", content: markdown, level: 0}}
	}

	sections := make([]section, 0, len(matches))
	for i, m := range matches {
		level := m[3] - m[2]
		heading := strings.TrimSpace(markdown[m[4]:m[5]])

		start := m[1]
		end := len(markdown)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		sections = append(sections, section{
			heading: heading,
			content: strings.TrimSpace(markdown[start:end]),
			level:   level,
		})
	}

	return sections
}

// sectionPath builds the breadcrumb for one section by scanning earlier
// sections backward and prepending every heading that rises above the
// shallowest level seen so far.
func sectionPath(sections []section, idx int) string {
	parts := []string{sections[idx].heading}
	minLevel := sections[idx].level

	for i := idx - 1; i >= 0; i-- {
		if sections[i].level < minLevel {
			parts = append([]string{sections[i].heading}, parts...)
			minLevel = sections[i].level
		}
	}

	return strings.Join(parts, " > ")
}

// estimatePage interpolates a page number from the section's position,
// clamped to [1, totalPages].
func estimatePage(idx, totalSections, totalPages int) int {
	if totalSections == 0 {
		return 1
	}

	page := idx*totalPages/totalSections + 1
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// splitSection emits the chunks for one section. A section within the
// max budget becomes one chunk if it clears the minimum, otherwise it
// is dropped. A section over the max budget is packed greedily from its
// blank-line paragraphs; each closed chunk seeds the next with its last
// paragraph as overlap. The chunk index advances even across dropped
// chunks so identifiers stay stable.
func (c *SemanticChunker) splitSection(docID, content, path string, page, sectionIdx int) []DocumentChunk {
	tokens := c.counter.Count(content)

	if tokens <= c.config.MaxChunkSize {
		if tokens < c.config.MinChunkSize {
			return nil
		}
		return []DocumentChunk{c.newChunk(docID, sectionIdx, 0, content, page, path, tokens)}
	}

	paragraphs := strings.Split(content, "\n\n")

	var chunks []DocumentChunk
	var current []string
	currentTokens := 0
	chunkIdx := 0

	for _, para := range paragraphs {
		paraTokens := c.counter.Count(para)

		if currentTokens+paraTokens <= c.config.ChunkSize {
			current = append(current, para)
			currentTokens += paraTokens
			continue
		}

		if currentTokens >= c.config.MinChunkSize {
			text := strings.TrimSpace(strings.Join(current, "\n\n"))
			chunks = append(chunks, c.newChunk(docID, sectionIdx, chunkIdx, text, page, path, currentTokens))
		}
		chunkIdx++

		// Seed the next chunk with the closing paragraph as overlap.
		var overlap string
		if len(current) > 0 {
			overlap = current[len(current)-1]
		}
		current = current[:0]
		if overlap != "" {
			current = append(current, overlap)
		}
		current = append(current, para)
		currentTokens = c.counter.Count(strings.Join(current, "\n\n"))
	}

	if len(current) > 0 && currentTokens >= c.config.MinChunkSize {
		text := strings.TrimSpace(strings.Join(current, "\n\n"))
		chunks = append(chunks, c.newChunk(docID, sectionIdx, chunkIdx, text, page, path, currentTokens))
	}

	return chunks
}

func (c *SemanticChunker) newChunk(docID string, sectionIdx, chunkIdx int, text string, page int, path string, tokens int) DocumentChunk {
	return DocumentChunk{
		ChunkID:     fmt.Sprintf("%s_s%d_c%d", docID, sectionIdx, chunkIdx),
		DocID:       docID,
		Text:        text,
		Page:        page,
		SectionPath: path,
		TokenCount:  tokens,
	}
}
