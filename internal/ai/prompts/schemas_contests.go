package prompts

// EdictExtractionSchema describes the structured output for both the initial
// edital extraction and the subject refinement pass (same shape, so the
// refined result stays comparable to the raw one).
func EdictExtractionSchema() map[string]any {
	examStructure := SchemaObject(map[string]any{
		"level_name":          StringSchema(),
		"level_type":          EnumSchema("MODULE", "SUBJECT"),
		"number_of_questions": IntOrNullSchema(),
		"weight_per_question": NumberOrNullSchema(),
	}, []string{"level_name", "level_type", "number_of_questions", "weight_per_question"})

	programmaticContent := SchemaObject(map[string]any{
		"exam_module": StringSchema(),
		"subject":     StringSchema(),
		"topic":       StringSchema(),
		"topic_group": StringOrNullSchema(),
	}, []string{"exam_module", "subject", "topic"})

	contestRole := SchemaObject(map[string]any{
		"job_title":            StringSchema(),
		"exam_composition":     ArraySchema(examStructure),
		"programmatic_content": ArraySchema(programmaticContent),
	}, []string{"job_title", "exam_composition", "programmatic_content"})

	return SchemaObject(map[string]any{
		"contest_name":    StringSchema(),
		"examining_board": StringSchema(),
		"exam_date":       StringOrNullSchema(),
		"contest_roles":   ArraySchema(contestRole),
	}, []string{"contest_name", "examining_board", "exam_date", "contest_roles"})
}
