package retry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aprovia/aprovia-backend/internal/ai/prompts"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/gemini"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type scriptStep struct {
	raw string
	err error
}

// scriptClient replays canned steps and snapshots the conversation each call.
type scriptClient struct {
	steps     []scriptStep
	histories [][]gemini.Message
}

func (c *scriptClient) GenerateStructured(_ context.Context, _ string, history []gemini.Message, _ string, _ map[string]any) (json.RawMessage, error) {
	snapshot := make([]gemini.Message, len(history))
	copy(snapshot, history)
	c.histories = append(c.histories, snapshot)
	i := len(c.histories) - 1
	if i >= len(c.steps) {
		return nil, errors.New("script exhausted")
	}
	if c.steps[i].err != nil {
		return nil, c.steps[i].err
	}
	return json.RawMessage(c.steps[i].raw), nil
}

func (c *scriptClient) calls() int { return len(c.histories) }

type payload struct {
	Value string `json:"value"`
}

func stagePrompt(t *testing.T) prompts.Prompt {
	t.Helper()
	prompts.RegisterAll()
	return prompts.Prompt{
		Name:       "test_stage",
		Version:    1,
		SchemaName: "test_stage",
		Schema:     map[string]any{"type": "object"},
		System:     "sistema",
		User:       "gere o valor",
	}
}

func requireValue(want string) Rule[payload] {
	return Rule[payload]{
		Name: "require_value",
		Check: func(p payload) []Violation {
			if p.Value == want {
				return nil
			}
			return []Violation{Violationf("o campo 'value' é %q; o valor esperado é %q", p.Value, want)}
		},
	}
}

func TestRunCommitsOneUserOneModelTurnOnFirstAttemptSuccess(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{{raw: `{"value":"ok"}`}}}
	o := NewOrchestrator(testLogger(t), client)

	out, err := Run(context.Background(), o, Stage[payload]{
		Name:   "stage_one",
		Prompt: stagePrompt(t),
		Rules:  []Rule[payload]{requireValue("ok")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Value != "ok" {
		t.Fatalf("out.Value = %q", out.Value)
	}

	h := o.History()
	if len(h) != 2 {
		t.Fatalf("committed history = %d turns, want 2", len(h))
	}
	if h[0].Role != gemini.RoleUser || h[1].Role != gemini.RoleModel {
		t.Fatalf("turn roles = %s,%s, want user,model", h[0].Role, h[1].Role)
	}
}

func TestRunHistoryArithmeticAcrossRetries(t *testing.T) {
	// Success on attempt index 1: the committed baseline must hold exactly
	// two user and two model turns.
	client := &scriptClient{steps: []scriptStep{
		{raw: `{"value":"errado"}`},
		{raw: `{"value":"ok"}`},
	}}
	o := NewOrchestrator(testLogger(t), client)

	if _, err := Run(context.Background(), o, Stage[payload]{
		Name:   "stage_one",
		Prompt: stagePrompt(t),
		Rules:  []Rule[payload]{requireValue("ok")},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", client.calls())
	}

	h := o.History()
	users, models := 0, 0
	for _, m := range h {
		switch m.Role {
		case gemini.RoleUser:
			users++
		case gemini.RoleModel:
			models++
		}
	}
	if users != 2 || models != 2 {
		t.Fatalf("committed turns = %d user / %d model, want 2/2", users, models)
	}

	// The retry call must carry the correction turn with the violation text
	// and the rejected output verbatim.
	second := client.histories[1]
	last := second[len(second)-1]
	if last.Role != gemini.RoleUser {
		t.Fatalf("retry last turn role = %s, want user", last.Role)
	}
	text := last.Parts[0].Text
	if !strings.Contains(text, "o valor esperado") {
		t.Fatalf("correction missing violation text:\n%s", text)
	}
	if !strings.Contains(text, `{"value":"errado"}`) {
		t.Fatalf("correction missing rejected output:\n%s", text)
	}
}

func TestRunDoesNotCommitOnExhaustion(t *testing.T) {
	t.Setenv("AI_VALIDATION_MAX_RETRIES", "1")
	client := &scriptClient{steps: []scriptStep{
		{raw: `{"value":"errado"}`},
		{raw: `{"value":"errado"}`},
	}}
	o := NewOrchestrator(testLogger(t), client)

	_, err := Run(context.Background(), o, Stage[payload]{
		Name:   "stage_one",
		Prompt: stagePrompt(t),
		Rules:  []Rule[payload]{requireValue("ok")},
	})
	var exceeded *MaxRetriesExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("err = %v, want *MaxRetriesExceededError", err)
	}
	if exceeded.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", exceeded.Attempts)
	}
	if len(exceeded.Violations) == 0 || string(exceeded.LastRaw) != `{"value":"errado"}` {
		t.Fatalf("terminal error should carry the last violations and raw output: %+v", exceeded)
	}
	if len(o.History()) != 0 {
		t.Fatalf("failed stage committed %d turns, want 0", len(o.History()))
	}
}

func TestRunEveryRuleRunsWithoutShortCircuit(t *testing.T) {
	t.Setenv("AI_VALIDATION_MAX_RETRIES", "0")
	var firstRan, secondRan int
	failing := Rule[payload]{
		Name: "always_fails",
		Check: func(payload) []Violation {
			firstRan++
			return []Violation{Violationf("primeira regra rejeitou")}
		},
	}
	alsoFailing := Rule[payload]{
		Name: "also_fails",
		Check: func(payload) []Violation {
			secondRan++
			return []Violation{Violationf("segunda regra rejeitou")}
		},
	}

	client := &scriptClient{steps: []scriptStep{{raw: `{"value":"x"}`}}}
	o := NewOrchestrator(testLogger(t), client)

	_, err := Run(context.Background(), o, Stage[payload]{
		Name:   "stage_one",
		Prompt: stagePrompt(t),
		Rules:  []Rule[payload]{failing, alsoFailing},
	})
	var exceeded *MaxRetriesExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("err = %v, want *MaxRetriesExceededError", err)
	}
	if firstRan != 1 || secondRan != 1 {
		t.Fatalf("rule runs = %d/%d, want 1/1", firstRan, secondRan)
	}
	if len(exceeded.Violations) != 2 {
		t.Fatalf("violations = %d, want both rules reported", len(exceeded.Violations))
	}
}

func TestRunInvocationErrorConsumesOneAttempt(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{err: errors.New("status 503")},
		{raw: `{"value":"ok"}`},
	}}
	o := NewOrchestrator(testLogger(t), client)

	out, err := Run(context.Background(), o, Stage[payload]{
		Name:   "stage_one",
		Prompt: stagePrompt(t),
		Rules:  []Rule[payload]{requireValue("ok")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Value != "ok" {
		t.Fatalf("out.Value = %q", out.Value)
	}
	if client.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", client.calls())
	}

	// The failed call leaves a model turn with the error text so the
	// correction keeps the turn order intact.
	second := client.histories[1]
	var sawErrorTurn bool
	for _, m := range second {
		if m.Role == gemini.RoleModel && strings.Contains(m.Parts[0].Text, "status 503") {
			sawErrorTurn = true
		}
	}
	if !sawErrorTurn {
		t.Fatal("expected a model turn carrying the invocation error text")
	}
}

func TestRunDecodeFailureBecomesViolation(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{raw: `not json`},
		{raw: `{"value":"ok"}`},
	}}
	o := NewOrchestrator(testLogger(t), client)

	if _, err := Run(context.Background(), o, Stage[payload]{
		Name:   "stage_one",
		Prompt: stagePrompt(t),
		Rules:  []Rule[payload]{requireValue("ok")},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls() != 2 {
		t.Fatalf("model calls = %d, want 2", client.calls())
	}

	second := client.histories[1]
	last := second[len(second)-1]
	if !strings.Contains(last.Parts[0].Text, "não corresponde ao schema") {
		t.Fatalf("correction should explain the schema mismatch:\n%s", last.Parts[0].Text)
	}
}

func TestSecondStageSeesCommittedFirstStageTranscript(t *testing.T) {
	client := &scriptClient{steps: []scriptStep{
		{raw: `{"value":"ok"}`},
		{raw: `{"value":"ok"}`},
	}}
	o := NewOrchestrator(testLogger(t), client)

	if _, err := Run(context.Background(), o, Stage[payload]{
		Name:   "stage_one",
		Prompt: stagePrompt(t),
		Rules:  []Rule[payload]{requireValue("ok")},
	}); err != nil {
		t.Fatalf("stage one: %v", err)
	}
	if _, err := Run(context.Background(), o, Stage[payload]{
		Name:   "stage_two",
		Prompt: stagePrompt(t),
		Rules:  []Rule[payload]{requireValue("ok")},
	}); err != nil {
		t.Fatalf("stage two: %v", err)
	}

	// The second stage's call opens on the first stage's committed
	// user and model turns.
	second := client.histories[1]
	if len(second) != 3 {
		t.Fatalf("second stage call history = %d turns, want 3", len(second))
	}
	if second[1].Role != gemini.RoleModel || !strings.Contains(second[1].Parts[0].Text, `"ok"`) {
		t.Fatalf("second stage should see the first stage's model turn: %+v", second[1])
	}
	if len(o.History()) != 4 {
		t.Fatalf("committed history = %d turns, want 4", len(o.History()))
	}
}
