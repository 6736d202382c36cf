package edict_process

import (
	contestrepos "github.com/aprovia/aprovia-backend/internal/data/repos/contests"
	contestsmod "github.com/aprovia/aprovia-backend/internal/modules/contests"
	"github.com/aprovia/aprovia-backend/internal/pkg/logger"
	"github.com/aprovia/aprovia-backend/internal/platform/gcp"
	"github.com/aprovia/aprovia-backend/internal/platform/gemini"
)

type Pipeline struct {
	log       *logger.Logger
	processor *contestsmod.Processor
}

func New(
	baseLog *logger.Logger,
	client gemini.Client,
	bucket gcp.BucketService,
	contests contestrepos.ContestRepo,
) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", "edict_process"),
		processor: contestsmod.NewProcessor(baseLog, client, bucket, contests),
	}
}

func (p *Pipeline) Type() string { return "edict_process" }
