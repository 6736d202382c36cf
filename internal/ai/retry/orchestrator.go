package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aprovia/aprovia-backend/internal/ai/prompts"
	"github.com/aprovia/aprovia-backend/internal/observability"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/gemini"
)

const defaultMaxRetries = 3

// Orchestrator owns one conversation with the model and drives the
// generate-validate-correct loop over it. A single orchestrator runs stages
// strictly in sequence; the committed history only grows when a stage
// succeeds, so a failed stage never leaves partial turns behind.
type Orchestrator struct {
	log        *logger.Logger
	client     gemini.Client
	maxRetries int
	history    []gemini.Message
}

func NewOrchestrator(log *logger.Logger, client gemini.Client) *Orchestrator {
	return &Orchestrator{
		log:        log.With("service", "ValidationRetry"),
		client:     client,
		maxRetries: maxRetriesFromEnv(),
	}
}

func maxRetriesFromEnv() int {
	v := strings.TrimSpace(os.Getenv("AI_VALIDATION_MAX_RETRIES"))
	if v == "" {
		return defaultMaxRetries
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultMaxRetries
	}
	return n
}

// History returns a copy of the committed conversation.
func (o *Orchestrator) History() []gemini.Message {
	out := make([]gemini.Message, len(o.history))
	copy(out, o.history)
	return out
}

// Stage is one validated generation: a rendered prompt, optional extra parts
// for the opening user turn (e.g. an inline PDF), a decoder, and the business
// rules the decoded result must satisfy.
type Stage[T any] struct {
	Name   string
	Prompt prompts.Prompt
	Parts  []gemini.Part
	Decode func(json.RawMessage) (T, error)
	Rules  []Rule[T]
}

func decodeStage[T any](st Stage[T], raw json.RawMessage) (T, error) {
	if st.Decode != nil {
		return st.Decode(raw)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Run executes one stage against the orchestrator's conversation. Every
// attempt consumes budget identically, whether it failed in transit, failed
// to decode, or failed a rule. On success the working transcript becomes the
// new committed baseline; on exhaustion the baseline is untouched and a
// *MaxRetriesExceededError carries the outstanding violations.
func Run[T any](ctx context.Context, o *Orchestrator, st Stage[T]) (T, error) {
	var zero T
	if o == nil || o.client == nil {
		return zero, fmt.Errorf("orchestrator not configured")
	}
	if strings.TrimSpace(st.Name) == "" {
		st.Name = st.Prompt.Name
	}

	working := make([]gemini.Message, len(o.history), len(o.history)+2*(o.maxRetries+2))
	copy(working, o.history)

	userParts := make([]gemini.Part, 0, 1+len(st.Parts))
	if strings.TrimSpace(st.Prompt.User) != "" {
		userParts = append(userParts, gemini.Part{Text: st.Prompt.User})
	}
	userParts = append(userParts, st.Parts...)
	working = append(working, gemini.Message{Role: gemini.RoleUser, Parts: userParts})

	start := time.Now()
	var (
		lastRaw        json.RawMessage
		lastErr        error
		lastViolations []Violation
	)

	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		raw, err := o.client.GenerateStructured(ctx, st.Prompt.System, working, st.Prompt.SchemaName, st.Prompt.Schema)
		switch {
		case err != nil:
			invErr := &ModelInvocationError{Err: err}
			lastErr = invErr
			lastRaw = nil
			lastViolations = []Violation{{Message: invErr.Error()}}
			working = append(working, gemini.Text(gemini.RoleModel, invErr.Error()))
		default:
			lastErr = nil
			lastRaw = raw
			working = append(working, gemini.Text(gemini.RoleModel, string(raw)))

			out, decErr := decodeStage(st, raw)
			if decErr != nil {
				invErr := &ModelInvocationError{Err: decErr}
				lastErr = invErr
				lastViolations = []Violation{{Message: "a resposta não corresponde ao schema solicitado: " + decErr.Error()}}
				break
			}

			lastViolations = runRules(st, out)
			if len(lastViolations) == 0 {
				o.history = working
				o.log.Info("stage validated",
					"stage", st.Name,
					"attempts", attempt+1,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				if m := observability.Current(); m != nil {
					m.ObserveValidation(st.Name, "succeeded", attempt+1)
				}
				return out, nil
			}
		}

		o.log.Warn("stage attempt rejected",
			"stage", st.Name,
			"attempt", attempt+1,
			"violations", len(lastViolations),
			"detail", joinViolations(lastViolations),
		)

		if attempt == o.maxRetries {
			break
		}
		correction, corrErr := correctionTurn(lastViolations, lastRaw)
		if corrErr != nil {
			return zero, corrErr
		}
		working = append(working, correction)
	}

	if m := observability.Current(); m != nil {
		m.ObserveValidation(st.Name, "exhausted", o.maxRetries+1)
	}
	return zero, &MaxRetriesExceededError{
		Stage:      st.Name,
		Attempts:   o.maxRetries + 1,
		Violations: lastViolations,
		LastRaw:    lastRaw,
		LastErr:    lastErr,
	}
}

func runRules[T any](st Stage[T], out T) []Violation {
	var all []Violation
	for _, r := range st.Rules {
		if r.Check == nil {
			continue
		}
		vs := r.Check(out)
		if len(vs) == 0 {
			continue
		}
		all = append(all, vs...)
		if m := observability.Current(); m != nil {
			m.IncRuleViolation(st.Name, r.Name)
		}
	}
	return all
}
