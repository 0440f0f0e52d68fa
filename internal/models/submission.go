package models

// Submission is one persisted survey response as stored in OxiDB. Row keeps
// the cells in column order; Data keys the same cells by column name.
type Submission struct {
	ID           string         `json:"_id,omitempty"`
	SubmissionID string         `json:"submissionId"`
	SubmittedAt  string         `json:"submittedAt"`
	Columns      []string       `json:"columns"`
	Row          []any          `json:"row"`
	Data         map[string]any `json:"data"`
}
