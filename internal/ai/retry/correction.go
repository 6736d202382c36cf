package retry

import (
	"encoding/json"
	"fmt"

	"github.com/aprovia/aprovia-backend/internal/ai/prompts"
	"github.com/aprovia/aprovia-backend/internal/platform/gemini"
)

// correctionTurn renders the follow-up user turn after a rejected attempt:
// the violation list verbatim plus the invalid output the model produced.
// The active stage keeps its own schema on the retry call.
func correctionTurn(violations []Violation, lastRaw json.RawMessage) (gemini.Message, error) {
	invalid := "(nenhuma resposta recebida)"
	if len(lastRaw) > 0 {
		invalid = string(lastRaw)
	}
	p, err := prompts.Build(prompts.PromptJSONCorrection, prompts.Input{
		ErrorSummary:    joinViolations(violations),
		InvalidResponse: invalid,
	})
	if err != nil {
		return gemini.Message{}, fmt.Errorf("build correction prompt: %w", err)
	}
	return gemini.Text(gemini.RoleUser, p.User), nil
}
