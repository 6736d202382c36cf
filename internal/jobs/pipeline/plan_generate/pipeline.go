package plan_generate

import (
	"fmt"

	"github.com/google/uuid"

	jobrt "github.com/aprovia/aprovia-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p == nil || p.log == nil || p.collector == nil || p.planner == nil {
		jc.Fail("validate", fmt.Errorf("plan_generate: pipeline not configured"))
		return nil
	}

	userContestID, ok := jc.PayloadUUID("user_contest_id")
	if !ok || userContestID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing user_contest_id"))
		return nil
	}

	jc.Progress("collect", 10, "Coletando tópicos e progresso")
	input, err := p.collector.Collect(jc.Ctx, userContestID)
	if err != nil {
		jc.Fail("collect", err)
		return nil
	}

	jc.Progress("generate", 30, "Gerando plano de estudos")
	summary, err := p.planner.Generate(jc.Ctx, input)
	if err != nil {
		jc.Fail("generate", err)
		return nil
	}

	jc.Succeed("done", map[string]any{
		"job_run_id":      jc.Job.ID.String(),
		"user_contest_id": userContestID.String(),
		"total_sessions":  input.TotalSessions,
		"topics":          len(input.Topics),
		"summary":         summary,
	})
	return nil
}
