package ollama

import (
	"fmt"
	"strings"

	"github.com/avelkov/corpus-qa/internal/core/domain"
)

// buildAnswerPrompt instructs the model to answer only from the retrieved
// evidence and to cite the chunks it used as [chunk:<id>] markers, which is
// the exact format the citation guard validates.
func buildAnswerPrompt(question string, candidates []domain.RetrievalCandidate) string {
	var contextBuilder strings.Builder
	for _, c := range candidates {
		contextBuilder.WriteString(fmt.Sprintf(
			"[chunk:%s] source=%s position=%d score=%.3f\n%s\n\n",
			c.Chunk.ID,
			c.Chunk.DocumentID,
			c.Chunk.Position,
			c.FinalScore(),
			c.Chunk.Text,
		))
	}

	return fmt.Sprintf(`Answer the user question only from the context below.
After every claim, cite the supporting chunk with its marker, for example [chunk:abc123].
Never cite a chunk that is not in the context. If the context is insufficient, say so directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
