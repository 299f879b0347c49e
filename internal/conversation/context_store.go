package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bekzodov/meddist-ai-assistant/internal/observability/metrics"
	"github.com/bekzodov/meddist-ai-assistant/pkg/logging"
)

const maxMessages = 50

// ContextStore is a concurrency-safe in-memory store of per-session
// conversation state. Contexts are created lazily, expire by TTL, and never
// survive a process restart. Callers receive copies; nothing aliases the
// stored state.
type ContextStore struct {
	mu       sync.RWMutex
	sessions map[string]*Context

	logger  *logging.Logger
	metrics *metrics.AssistantMetrics

	janitorCancel context.CancelFunc
	janitorDone   chan struct{}
}

// NewContextStore creates an empty session store.
func NewContextStore(logger *logging.Logger, m *metrics.AssistantMetrics) *ContextStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &ContextStore{
		sessions: make(map[string]*Context),
		logger:   logger,
		metrics:  m,
	}
}

// Get returns the context for sessionID, creating and storing a fresh one if
// absent. An empty sessionID is replaced with a generated token.
func (s *ContextStore) Get(sessionID string) *Context {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[sessionID]
	if !ok {
		now := time.Now()
		c = &Context{
			SessionID:   sessionID,
			CreatedAt:   now,
			LastUpdated: now,
		}
		s.sessions[sessionID] = c
	}
	return cloneContext(c)
}

// Save upserts the context and advances LastUpdated.
func (s *ContextStore) Save(c *Context) {
	if c == nil || c.SessionID == "" {
		return
	}
	stored := cloneContext(c)
	stored.LastUpdated = time.Now()

	s.mu.Lock()
	s.sessions[stored.SessionID] = stored
	s.mu.Unlock()
}

// Remove deletes the session outright.
func (s *ContextStore) Remove(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// AppendMessage loads the session, appends a message, trims history to the
// most recent entries, saves, and returns the updated context.
func (s *ContextStore) AppendMessage(sessionID, role, content, functionName, functionArgs string) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[sessionID]
	if !ok {
		now := time.Now()
		c = &Context{SessionID: sessionID, CreatedAt: now}
		s.sessions[sessionID] = c
	}

	c.Messages = append(c.Messages, Message{
		Role:         role,
		Content:      content,
		FunctionName: functionName,
		FunctionArgs: functionArgs,
		Timestamp:    time.Now(),
	})
	if len(c.Messages) > maxMessages {
		c.Messages = c.Messages[len(c.Messages)-maxMessages:]
	}
	c.LastUpdated = time.Now()

	return cloneContext(c)
}

// SetPending replaces the session's pending operation. Any prior in-flight
// operation is discarded.
func (s *ContextStore) SetPending(sessionID string, p *PendingOperation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	if c.Pending != nil && p != nil && c.Pending.Type != p.Type {
		s.logger.Debug("pending operation replaced",
			"session_id", sessionID,
			"previous", c.Pending.Type,
			"next", p.Type,
		)
	}
	c.Pending = clonePending(p)
	c.LastUpdated = time.Now()
}

// UpdatePendingParameters merges new key/value pairs into the pending
// operation's parameters. No-op when nothing is pending.
func (s *ContextStore) UpdatePendingParameters(sessionID string, params map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[sessionID]
	if !ok || c.Pending == nil {
		return
	}
	if c.Pending.Parameters == nil {
		c.Pending.Parameters = make(map[string]any, len(params))
	}
	for k, v := range params {
		c.Pending.Parameters[k] = v
	}
	c.LastUpdated = time.Now()
}

// CompletePending clears the pending operation after successful execution.
func (s *ContextStore) CompletePending(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	c.Pending = nil
	c.LastUpdated = time.Now()
}

// Pending returns a copy of the session's pending operation, if any.
func (s *ContextStore) Pending(sessionID string) *PendingOperation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return clonePending(c.Pending)
}

// CleanupExpired removes every session whose LastUpdated is older than
// now-maxAge and returns the number removed.
func (s *ContextStore) CleanupExpired(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.sessions {
		if c.LastUpdated.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("expired sessions removed", "count", removed)
	}
	s.metrics.ObserveSessionsExpired(removed)
	return removed
}

// Len returns the number of live sessions.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SessionSummary is a lightweight view of one live session.
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	MessageCount int       `json:"messageCount"`
	PendingType  string    `json:"pendingType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Summaries lists all live sessions for the admin surface.
func (s *ContextStore) Summaries() []SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionSummary, 0, len(s.sessions))
	for _, c := range s.sessions {
		summary := SessionSummary{
			SessionID:    c.SessionID,
			MessageCount: len(c.Messages),
			CreatedAt:    c.CreatedAt,
			LastUpdated:  c.LastUpdated,
		}
		if c.Pending != nil {
			summary.PendingType = c.Pending.Type
		}
		out = append(out, summary)
	}
	return out
}

// StartJanitor launches the periodic expiry sweep. It runs independently of
// request traffic until Stop is called.
func (s *ContextStore) StartJanitor(interval, maxAge time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.janitorCancel = cancel
	s.janitorDone = make(chan struct{})

	go func() {
		defer close(s.janitorDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(maxAge)
			}
		}
	}()
}

// Stop halts the janitor and waits for it to exit.
func (s *ContextStore) Stop() {
	if s.janitorCancel == nil {
		return
	}
	s.janitorCancel()
	<-s.janitorDone
	s.janitorCancel = nil
}

func cloneContext(c *Context) *Context {
	if c == nil {
		return nil
	}
	out := &Context{
		SessionID:   c.SessionID,
		CreatedAt:   c.CreatedAt,
		LastUpdated: c.LastUpdated,
		Pending:     clonePending(c.Pending),
	}
	if len(c.Messages) > 0 {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	return out
}

func clonePending(p *PendingOperation) *PendingOperation {
	if p == nil {
		return nil
	}
	out := &PendingOperation{
		Type:         p.Type,
		NextQuestion: p.NextQuestion,
		CreatedAt:    p.CreatedAt,
	}
	if len(p.Parameters) > 0 {
		out.Parameters = make(map[string]any, len(p.Parameters))
		for k, v := range p.Parameters {
			out.Parameters[k] = v
		}
	}
	if len(p.Missing) > 0 {
		out.Missing = append([]string(nil), p.Missing...)
	}
	return out
}
