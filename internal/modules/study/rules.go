package study

import (
	"sort"

	"github.com/aprovia/aprovia-backend/internal/ai/retry"
)

const (
	minSessionEstimate = 1
	maxSessionEstimate = 10
)

// Violation messages are in Portuguese: they are sent back to the model
// verbatim inside the correction turn.

// TopicIDCompleteness requires the analysis to cover every input topic id
// exactly once, and nothing else.
func TopicIDCompleteness(inputIDs []int) retry.Rule[TopicAnalysis] {
	expected := make(map[int]struct{}, len(inputIDs))
	for _, id := range inputIDs {
		expected[id] = struct{}{}
	}
	return retry.Rule[TopicAnalysis]{
		Name: "topic_id_completeness",
		Check: func(a TopicAnalysis) []retry.Violation {
			var out []retry.Violation
			seen := make(map[int]int, len(a.AnalyzedTopics))
			for _, t := range a.AnalyzedTopics {
				seen[t.TopicID]++
				if _, ok := expected[t.TopicID]; !ok {
					out = append(out, retry.Violationf(
						"o topic_id %d não existe na lista de entrada", t.TopicID))
				}
			}
			for _, id := range sortedIDs(expected) {
				switch n := seen[id]; {
				case n == 0:
					out = append(out, retry.Violationf(
						"o topic_id %d da lista de entrada não foi analisado", id))
				case n > 1:
					out = append(out, retry.Violationf(
						"o topic_id %d foi analisado %d vezes; analise cada tópico exatamente uma vez", id, n))
				}
			}
			return out
		},
	}
}

// SessionEstimateRange bounds each estimated_sessions to a sane per-topic
// range.
func SessionEstimateRange() retry.Rule[TopicAnalysis] {
	return retry.Rule[TopicAnalysis]{
		Name: "session_estimate_range",
		Check: func(a TopicAnalysis) []retry.Violation {
			var out []retry.Violation
			for _, t := range a.AnalyzedTopics {
				if t.EstimatedSessions < minSessionEstimate || t.EstimatedSessions > maxSessionEstimate {
					out = append(out, retry.Violationf(
						"estimated_sessions do topic_id %d é %d; use um valor entre %d e %d",
						t.TopicID, t.EstimatedSessions, minSessionEstimate, maxSessionEstimate))
				}
			}
			return out
		},
	}
}

// PriorityDiversity rejects an analysis that puts every topic at the same
// priority when there is more than one topic to rank.
func PriorityDiversity() retry.Rule[TopicAnalysis] {
	return retry.Rule[TopicAnalysis]{
		Name: "priority_diversity",
		Check: func(a TopicAnalysis) []retry.Violation {
			if len(a.AnalyzedTopics) <= 1 {
				return nil
			}
			levels := map[string]struct{}{}
			for _, t := range a.AnalyzedTopics {
				levels[t.PriorityLevel] = struct{}{}
			}
			if len(levels) >= 2 {
				return nil
			}
			return []retry.Violation{retry.Violationf(
				"todos os %d tópicos receberam a mesma prioridade; diferencie os níveis de prioridade conforme proficiência e peso",
				len(a.AnalyzedTopics))}
		},
	}
}

// SessionCountCeiling caps the roadmap at the available session budget.
func SessionCountCeiling(totalSessions int) retry.Rule[StudyPlan] {
	return retry.Rule[StudyPlan]{
		Name: "session_count_ceiling",
		Check: func(p StudyPlan) []retry.Violation {
			if len(p.Roadmap) <= totalSessions {
				return nil
			}
			return []retry.Violation{retry.Violationf(
				"o roadmap tem %d sessões mas apenas %d estão disponíveis; agrupe tópicos para respeitar o limite",
				len(p.Roadmap), totalSessions)}
		},
	}
}

// PlannedTopicCompleteness requires every input topic id to appear in at
// least one session, with no invented ids.
func PlannedTopicCompleteness(inputIDs []int) retry.Rule[StudyPlan] {
	expected := make(map[int]struct{}, len(inputIDs))
	for _, id := range inputIDs {
		expected[id] = struct{}{}
	}
	return retry.Rule[StudyPlan]{
		Name: "planned_topic_completeness",
		Check: func(p StudyPlan) []retry.Violation {
			var out []retry.Violation
			covered := map[int]struct{}{}
			for _, s := range p.Roadmap {
				for _, id := range s.TopicIDs {
					covered[id] = struct{}{}
					if _, ok := expected[id]; !ok {
						out = append(out, retry.Violationf(
							"a sessão %d referencia o topic_id %d, que não existe na lista de entrada",
							s.SessionNumber, id))
					}
				}
			}
			for _, id := range sortedIDs(expected) {
				if _, ok := covered[id]; !ok {
					out = append(out, retry.Violationf(
						"o topic_id %d não aparece em nenhuma sessão do roadmap", id))
				}
			}
			return out
		},
	}
}

func sortedIDs(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
