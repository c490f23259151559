package domain

// AbstainReason explains why the system declined to answer.
type AbstainReason string

const (
	AbstainNoChunks     AbstainReason = "no chunks"
	AbstainLowRelevance AbstainReason = "low relevance"
	AbstainOutOfDomain  AbstainReason = "out of domain"
)

// CitationReport is the Citation Guard verdict for one generated answer.
type CitationReport struct {
	Citations []string      `json:"citations"`
	Invalid   []string      `json:"invalid,omitempty"`
	Abstained bool          `json:"abstained"`
	Reason    AbstainReason `json:"reason,omitempty"`
}

// AnswerOutcome is the terminal result of the ask path: either an answer
// with validated citations, or an explicit abstention. Abstention is an
// expected outcome, not an error.
type AnswerOutcome struct {
	Answered  bool                 `json:"answered"`
	Text      string               `json:"text,omitempty"`
	Citations []string             `json:"citations,omitempty"`
	Warnings  []string             `json:"warnings,omitempty"`
	Reason    AbstainReason        `json:"reason,omitempty"`
	Sources   []RetrievalCandidate `json:"-"`
}

// InsufficientContextText is the fixed-shape abstention message returned in
// place of generated text.
const InsufficientContextText = "I don't have enough supporting material in this workspace to answer that."

func Abstention(reason AbstainReason) *AnswerOutcome {
	return &AnswerOutcome{
		Answered: false,
		Text:     InsufficientContextText,
		Reason:   reason,
	}
}
