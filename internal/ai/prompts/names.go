package prompts

type PromptName string

const (
	// Edict processing
	PromptEdictExtraction   PromptName = "edict_extraction"
	PromptSubjectRefinement PromptName = "subject_refinement"

	// Study plan generation
	PromptTopicAnalysis    PromptName = "topic_analysis"
	PromptPlanOrganization PromptName = "plan_organization"

	// Validation loop
	PromptJSONCorrection PromptName = "json_correction"
)
