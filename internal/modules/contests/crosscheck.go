package contests

import "sort"

// topicSet collects every distinct topic name across all roles.
func topicSet(e EdictExtraction) map[string]struct{} {
	set := map[string]struct{}{}
	for _, role := range e.ContestRoles {
		for _, t := range role.ProgrammaticContent {
			set[t.Topic] = struct{}{}
		}
	}
	return set
}

// diffTopicSets compares the raw and refined extractions by topic name.
// missing holds topics the refinement dropped, invented holds topics it made
// up. Both sorted for stable logging.
func diffTopicSets(raw, refined EdictExtraction) (missing, invented []string) {
	rawSet := topicSet(raw)
	refinedSet := topicSet(refined)
	for topic := range rawSet {
		if _, ok := refinedSet[topic]; !ok {
			missing = append(missing, topic)
		}
	}
	for topic := range refinedSet {
		if _, ok := rawSet[topic]; !ok {
			invented = append(invented, topic)
		}
	}
	sort.Strings(missing)
	sort.Strings(invented)
	return missing, invented
}
