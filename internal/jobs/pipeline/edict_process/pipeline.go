package edict_process

import (
	"fmt"

	"github.com/google/uuid"

	jobrt "github.com/aprovia/aprovia-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if p == nil || p.log == nil || p.processor == nil {
		jc.Fail("validate", fmt.Errorf("edict_process: pipeline not configured"))
		return nil
	}

	contestID, ok := jc.PayloadUUID("contest_id")
	if !ok || contestID == uuid.Nil {
		jc.Fail("validate", fmt.Errorf("missing contest_id"))
		return nil
	}

	jc.Progress("process", 5, "Processando edital")

	summary, err := p.processor.Process(jc.Ctx, contestID)
	if err != nil {
		jc.Fail("process", err)
		return nil
	}

	jc.Succeed("done", map[string]any{
		"job_run_id": jc.Job.ID.String(),
		"contest_id": contestID.String(),
		"summary":    summary,
	})
	return nil
}
