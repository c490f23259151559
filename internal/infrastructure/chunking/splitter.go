package chunking

import (
	"errors"
	"regexp"
	"strings"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

// Splitter turns normalized document content into overlapping, tagged chunks.
// It prefers semantic boundaries (headings, blank-line paragraphs, transcript
// segment breaks) and falls back to a sliding token window when a single
// section exceeds the target size. Overlap is copied text: every chunk is
// self-contained and independently retrievable.
type Splitter struct {
	TargetTokens  int
	OverlapTokens int
	MinTokens     int
}

const (
	defaultTargetTokens  = 800
	defaultOverlapTokens = 150
)

func NewSplitter(targetTokens, overlapTokens int) *Splitter {
	if targetTokens <= 0 {
		targetTokens = defaultTargetTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= targetTokens {
		overlapTokens = targetTokens / 4
	}
	return &Splitter{
		TargetTokens:  targetTokens,
		OverlapTokens: overlapTokens,
		MinTokens:     targetTokens / 10,
	}
}

// Chunk splits content for doc. Content that yields no tokens returns
// ErrChunkingFailed and zero chunks; chunking never partially succeeds.
func (s *Splitter) Chunk(doc *domain.Document, content string) ([]domain.Chunk, error) {
	sections := s.parseSections(doc, content)

	var tokens []string
	var boundaries []int // token index at the end of each section
	var sectionMeta []sectionInfo
	for _, sec := range sections {
		if len(sec.tokens) == 0 {
			continue
		}
		sectionMeta = append(sectionMeta, sectionInfo{start: len(tokens), speaker: sec.speaker, timecode: sec.timecode})
		tokens = append(tokens, sec.tokens...)
		boundaries = append(boundaries, len(tokens))
	}
	if len(tokens) == 0 {
		return nil, domain.WrapError(domain.ErrChunkingFailed, "chunk document "+doc.ID, errors.New("no textual content"))
	}

	var chunks []domain.Chunk
	start := 0
	for start < len(tokens) {
		cut := s.cutPoint(tokens, boundaries, start)
		// An undersized tail folds into the current chunk instead of
		// becoming its own fragment.
		if remaining := len(tokens) - cut; remaining > 0 && remaining < s.MinTokens {
			cut = len(tokens)
		}

		text := strings.Join(tokens[start:cut], " ")
		chunk := domain.Chunk{
			ID:          domain.ChunkID(doc.ID, len(chunks), text),
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			Text:        text,
			Position:    len(chunks),
			StartOffset: start,
			EndOffset:   cut,
			TokenCount:  cut - start,
			Tags:        s.chunkTags(doc, sectionMeta, start),
		}
		chunks = append(chunks, chunk)

		if cut >= len(tokens) {
			break
		}
		next := cut - s.OverlapTokens
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks, nil
}

// cutPoint picks the end of the chunk starting at start: the last section
// boundary within the target window, or a hard window cut when the section
// itself is oversized.
func (s *Splitter) cutPoint(tokens []string, boundaries []int, start int) int {
	limit := start + s.TargetTokens
	if limit >= len(tokens) {
		return len(tokens)
	}

	best := -1
	for _, b := range boundaries {
		if b <= start {
			continue
		}
		if b > limit {
			break
		}
		best = b
	}
	if best >= start+s.MinTokens {
		return best
	}
	return limit
}

func (s *Splitter) chunkTags(doc *domain.Document, meta []sectionInfo, tokenStart int) map[string]string {
	tags := map[string]string{
		domain.TagWorkspace:  doc.WorkspaceID,
		domain.TagSourceType: string(doc.SourceType),
	}
	if doc.SourceType != domain.SourceTypeTranscript {
		return tags
	}
	// Attribute the chunk to the transcript segment its first token falls in.
	for i := len(meta) - 1; i >= 0; i-- {
		if meta[i].start <= tokenStart {
			if meta[i].speaker != "" {
				tags[domain.TagSpeaker] = meta[i].speaker
			}
			if meta[i].timecode != "" {
				tags[domain.TagTimecode] = meta[i].timecode
			}
			break
		}
	}
	return tags
}

type section struct {
	tokens   []string
	speaker  string
	timecode string
}

type sectionInfo struct {
	start    int
	speaker  string
	timecode string
}

var transcriptSegment = regexp.MustCompile(`^\[(\d{1,2}:\d{2}(?::\d{2})?)\]\s*(?:([^:]+):)?\s*(.*)$`)

// parseSections splits content into semantic units: transcript segments for
// transcript sources, heading-delimited paragraphs otherwise.
func (s *Splitter) parseSections(doc *domain.Document, content string) []section {
	lines := strings.Split(content, "\n")
	if doc.SourceType == domain.SourceTypeTranscript {
		return parseTranscript(lines)
	}
	return parseProse(lines)
}

func parseTranscript(lines []string) []section {
	var out []section
	var current section
	flush := func() {
		if len(current.tokens) > 0 {
			out = append(out, current)
		}
	}
	for _, line := range lines {
		if m := transcriptSegment.FindStringSubmatch(line); m != nil {
			flush()
			current = section{timecode: m[1], speaker: strings.TrimSpace(m[2])}
			current.tokens = append(current.tokens, strings.Fields(m[3])...)
			continue
		}
		current.tokens = append(current.tokens, strings.Fields(line)...)
	}
	flush()
	return out
}

func parseProse(lines []string) []section {
	var out []section
	var current section
	flush := func() {
		if len(current.tokens) > 0 {
			out = append(out, current)
			current = section{}
		}
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			flush()
		}
		current.tokens = append(current.tokens, strings.Fields(trimmed)...)
	}
	flush()
	return out
}

// EstimateTokens is the shared token-count heuristic used for context
// budgeting: whitespace-delimited tokens, matching how chunks are built.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}
