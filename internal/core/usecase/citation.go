package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

// citationMarker matches the [chunk:<id>] references the generator is
// instructed to emit.
var citationMarker = regexp.MustCompile(`\[chunk:([0-9a-fA-F-]+)\]`)

// CitationGuard validates generated citations against the retrieved set and
// owns the abstention decision. Two terminal states: Answered or Abstained.
type CitationGuard struct {
	MinRelevance float64
}

func NewCitationGuard(minRelevance float64) *CitationGuard {
	if minRelevance <= 0 {
		minRelevance = 0.1
	}
	return &CitationGuard{MinRelevance: minRelevance}
}

// ShouldAbstain decides before generation: no evidence, evidence below the
// relevance floor, or the caller flagging the query out-of-domain.
func (g *CitationGuard) ShouldAbstain(result domain.RetrievalResult, outOfDomain bool) (domain.AbstainReason, bool) {
	if outOfDomain {
		return domain.AbstainOutOfDomain, true
	}
	if len(result.Candidates) == 0 {
		return domain.AbstainNoChunks, true
	}
	if result.BestScore() < g.MinRelevance {
		return domain.AbstainLowRelevance, true
	}
	return "", false
}

// Validate extracts citation markers from answerText and checks each against
// the retrieved set. Invalid citations never silently pass through: they are
// reported so the caller can strip them.
func (g *CitationGuard) Validate(answerText string, retrievedChunkIDs []string) domain.CitationReport {
	retrieved := make(map[string]struct{}, len(retrievedChunkIDs))
	for _, id := range retrievedChunkIDs {
		retrieved[id] = struct{}{}
	}

	var report domain.CitationReport
	seen := make(map[string]struct{})
	for _, m := range citationMarker.FindAllStringSubmatch(answerText, -1) {
		id := strings.ToLower(m[1])
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := retrieved[id]; ok {
			report.Citations = append(report.Citations, id)
		} else {
			report.Invalid = append(report.Invalid, id)
		}
	}
	return report
}

// StripInvalid removes the given citation markers from the answer text and
// returns one warning per stripped marker.
func StripInvalid(answerText string, invalid []string) (string, []string) {
	warnings := make([]string, 0, len(invalid))
	for _, id := range invalid {
		marker := fmt.Sprintf("[chunk:%s]", id)
		answerText = strings.ReplaceAll(answerText, marker, "")
		warnings = append(warnings, fmt.Sprintf("stripped citation to unretrieved chunk %s", id))
	}
	return strings.TrimSpace(strings.Join(strings.Fields(answerText), " ")), warnings
}
