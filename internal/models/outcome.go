package models

// Outcome is the result of checking in one target during one run.
type Outcome struct {
	Target   string `json:"target"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Attempts int    `json:"attempt_count"`
}
