package plan_generate

import (
	studymod "github.com/aprovia/aprovia-backend/internal/modules/study"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
)

type Pipeline struct {
	log       *logger.Logger
	collector *studymod.Collector
	planner   *studymod.Planner
}

func New(baseLog *logger.Logger, collector *studymod.Collector, planner *studymod.Planner) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", "plan_generate"),
		collector: collector,
		planner:   planner,
	}
}

func (p *Pipeline) Type() string { return "plan_generate" }
