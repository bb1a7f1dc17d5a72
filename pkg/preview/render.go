package preview

import (
	"fmt"
	"strings"

	"github.com/aretw0/pipeprep/pkg/domain"
)

// Render produces a Markdown view of a preview.
func Render(chunks domain.PreviewChunks) string {
	var sb strings.Builder

	switch c := chunks.(type) {
	case domain.GeneralChunks:
		fmt.Fprintf(&sb, "## General chunks (%d)\n\n", len(c))
		for i, chunk := range c {
			fmt.Fprintf(&sb, "### Chunk %d\n\n%s\n\n", i+1, chunk.Content)
		}

	case domain.ParentChildChunks:
		fmt.Fprintf(&sb, "## Parent-child chunks (%s, %d)\n\n", c.ParentMode, len(c.ParentChildChunks))
		for i, chunk := range c.ParentChildChunks {
			fmt.Fprintf(&sb, "### Parent %d\n\n%s\n\n", i+1, chunk.ParentContent)
			for j, child := range chunk.ChildContents {
				fmt.Fprintf(&sb, "- **C-%d** %s\n", j+1, child)
			}
			sb.WriteString("\n")
		}

	case domain.QAChunks:
		fmt.Fprintf(&sb, "## Q&A chunks (%d)\n\n", len(c.QAChunks))
		for _, qa := range c.QAChunks {
			fmt.Fprintf(&sb, "**Q:** %s\n\n**A:** %s\n\n", qa.Question, qa.Answer)
		}

	default:
		sb.WriteString("_No preview available._\n")
	}

	return sb.String()
}
