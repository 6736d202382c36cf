package prompts

// TopicAnalysisSchema describes the structured output of the per-topic
// analysis stage.
func TopicAnalysisSchema() map[string]any {
	analyzedTopic := SchemaObject(map[string]any{
		"topic_id":               IntSchema(),
		"priority_level":         EnumSchema("Urgente", "Alta Prioridade", "Média Prioridade", "Baixa Prioridade"),
		"estimated_sessions":     IntSchema(),
		"prerequisite_topic_ids": IntArraySchema(),
	}, []string{"topic_id", "priority_level", "estimated_sessions", "prerequisite_topic_ids"})

	return SchemaObject(map[string]any{
		"analyzed_topics": ArraySchema(analyzedTopic),
	}, []string{"analyzed_topics"})
}

// StudyPlanSchema describes the structured output of the plan organization
// stage: the ordered roadmap of focus sessions.
func StudyPlanSchema() map[string]any {
	session := SchemaObject(map[string]any{
		"session_number":  IntSchema(),
		"topic_ids":       IntArraySchema(),
		"summary":         StringSchema(),
		"priority_level":  StringSchema(),
		"priority_reason": StringSchema(),
	}, []string{"session_number", "topic_ids", "summary", "priority_level", "priority_reason"})

	return SchemaObject(map[string]any{
		"roadmap": ArraySchema(session),
	}, []string{"roadmap"})
}

// CorrectionSchema is a placeholder. The correction turn is appended to the
// conversation as user text; the active stage keeps its own schema for the
// follow-up call.
func CorrectionSchema() map[string]any {
	return map[string]any{"type": "object"}
}
