package session

import (
	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/history"
)

// ActionRequest is the JSON body for POST /calculator/sessions/{id}/actions.
type ActionRequest struct {
	Action string `json:"action"`          // "digit", "decimal", "operator", "clear", "delete", "percent", "calculate"
	Value  string `json:"value,omitempty"` // digit or operator key for "digit" and "operator"
}

// KeysRequest is the JSON body for the keys and evaluate endpoints. Keys
// use keyboard names: "7", "+", "Enter", "Escape", "Backspace".
type KeysRequest struct {
	Keys []string `json:"keys"`
}

// SessionResponse describes a session's display after a request.
type SessionResponse struct {
	ID string `json:"id"`
	calculator.Readout
	Pending     bool `json:"pending"`
	HistorySize int  `json:"history_size"`
}

// KeysResponse is SessionResponse plus the keys that mapped to no action.
type KeysResponse struct {
	SessionResponse
	Ignored []string `json:"ignored,omitempty"`
}

// HistoryResponse is the JSON response for GET .../history.
type HistoryResponse struct {
	ID      string          `json:"id"`
	Entries []history.Entry `json:"entries"`
}

// EvaluateResponse is the JSON response for POST /calculator/evaluate.
type EvaluateResponse struct {
	calculator.Readout
	Steps   []EvaluateStep  `json:"steps"`
	History []history.Entry `json:"history"`
	Ignored []string        `json:"ignored,omitempty"`
}

// EvaluateStep records the display after one replayed key.
type EvaluateStep struct {
	Key        string `json:"key"`
	Operand    string `json:"operand"`
	Expression string `json:"expression"`
}
