package planner

import (
	"fmt"
	"strings"

	"github.com/veldtlabs/stratad/internal/completion"
	"github.com/veldtlabs/stratad/internal/hierarchy"
)

// sectionLabels head each context block in the system prompt. Order of
// appearance follows hierarchy.Levels, most specific first.
var sectionLabels = map[hierarchy.Level]string{
	hierarchy.LevelIndividual:   "INDIVIDUAL-SPECIFIC INFORMATION",
	hierarchy.LevelSubunit:      "SUBUNIT-LEVEL INFORMATION",
	hierarchy.LevelOrganization: "ORGANIZATION-LEVEL INFORMATION",
	hierarchy.LevelUnscoped:     "GENERAL ORGANIZATION INFORMATION",
}

const systemPreamble = `You are a knowledgeable assistant for %s. Answer questions using only the context below.

The context is grouped by specificity. When sections conflict or overlap, prefer the more specific section: individual-specific information overrides subunit-level information, which overrides organization-level and general information.

If the context does not contain the answer, say that you don't have that information rather than guessing.`

// buildMessages assembles the completion turn sequence: a system message
// carrying the labeled context sections, the conversation history as
// alternating user/assistant turns, then the current question.
func buildMessages(organization string, sections []Section, history []Exchange, question string) []completion.Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, systemPreamble, organization)
	for _, sec := range sections {
		sb.WriteString("\n\n=== ")
		sb.WriteString(sectionLabels[sec.Level])
		sb.WriteString(" ===\n")
		sb.WriteString(sec.Content)
	}

	messages := make([]completion.Message, 0, 2*len(history)+2)
	messages = append(messages, completion.Message{
		Role:    completion.RoleSystem,
		Content: sb.String(),
	})
	for _, ex := range history {
		messages = append(messages,
			completion.Message{Role: completion.RoleUser, Content: ex.Question},
			completion.Message{Role: completion.RoleAssistant, Content: ex.Answer},
		)
	}
	return append(messages, completion.Message{
		Role:    completion.RoleUser,
		Content: question,
	})
}
