package models

// ChatRequest is one natural-language question about a dataset.
type ChatRequest struct {
	Question string `json:"question" binding:"required,min=1,max=2000"`
}

// ChatAnswer is the response to a question. Deterministic answers
// carry a citation; model-backed fallbacks do not.
type ChatAnswer struct {
	Type     string    `json:"type"` // text|table|chart
	Text     string    `json:"text"`
	Table    *Table    `json:"table,omitempty"`
	Chart    *Chart    `json:"chart,omitempty"`
	Citation *Citation `json:"citation,omitempty"`
}

// ExplainRequest selects an anomaly from a stored analysis.
type ExplainRequest struct {
	AnomalyIndex *int `json:"anomaly_index" binding:"required"`
}
