package llm

import (
	"context"
	"strings"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
)

// Provider is stateless per call. history never contains prompt, the caller appends both turns
// once the reply is accepted. A safety refusal returns the fallback reply together with a
// ContentBlocked error.
type Provider interface {
	Generate(ctx context.Context, prompt string, history []chatModel.Turn) (chatModel.Reply, error)
}

// SplitContext separates context framing turns, which providers send as system text, from the dialogue.
func SplitContext(history []chatModel.Turn) (string, []chatModel.Turn) {
	var framing []string
	dialogue := make([]chatModel.Turn, 0, len(history))
	for _, turn := range history {
		if turn.Role == chatModel.RoleContext {
			framing = append(framing, turn.Text)
			continue
		}
		dialogue = append(dialogue, turn)
	}
	return strings.Join(framing, "\n\n"), dialogue
}

// SystemText joins the deployment instruction with the session's context framing.
func SystemText(base string, framing string) string {
	switch {
	case framing == "":
		return base
	case base == "":
		return framing
	}
	return base + "\n\n" + framing
}
