package conversation

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// Message is a single entry in a session transcript. Assistant messages that
// carried a structured function call keep the function name and the raw
// argument JSON; function-role messages carry the operation's textual result.
type Message struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	FunctionName string    `json:"functionName,omitempty"`
	FunctionArgs string    `json:"functionArgs,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// PendingOperation is a multi-turn business operation still waiting for
// required parameters. A session holds at most one; setting a new one
// replaces any prior one.
type PendingOperation struct {
	Type         string         `json:"type"`
	Parameters   map[string]any `json:"parameters"`
	Missing      []string       `json:"missing"`
	NextQuestion string         `json:"nextQuestion"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Context is the conversation state for one session. It is owned by the
// ContextStore and mutated only through the store's API.
type Context struct {
	SessionID   string            `json:"sessionId"`
	Messages    []Message         `json:"messages"`
	Pending     *PendingOperation `json:"pending,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// TurnRequest is one inbound utterance.
type TurnRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// TurnResponse is the reply envelope returned to the API layer.
type TurnResponse struct {
	Success          bool   `json:"success"`
	SessionID        string `json:"sessionId"`
	Reply            string `json:"reply"`
	ExecutedFunction string `json:"executedFunction,omitempty"`
	WasReset         bool   `json:"wasReset"`
}

// Service describes how the dialogue engine behaves.
type Service interface {
	ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error)
}
