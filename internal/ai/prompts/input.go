package prompts

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	// Edict refinement
	ExtractedJSON string
	// Plan analysis
	TopicsJSON string
	// Plan organization
	TotalSessions      int
	AnalyzedTopicsJSON string
	// Correction turn
	ErrorSummary    string
	InvalidResponse string
}
