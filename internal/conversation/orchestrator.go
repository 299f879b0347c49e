package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bekzodov/meddist-ai-assistant/internal/observability/metrics"
	"github.com/bekzodov/meddist-ai-assistant/pkg/logging"
)

var orchestratorTracer = otel.Tracer("meddist.internal.conversation")

const (
	defaultWindowSize = 10
	defaultLLMTimeout = 30 * time.Second

	msgEmptyUtterance = "Сообщение пустое. Напишите, чем помочь."
	msgResetAck       = "Контекст очищен. Чем могу помочь?"
	msgTurnFailed     = "Извините, не получилось обработать запрос. Попробуйте ещё раз."
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Orchestrator runs the per-turn dialogue state machine: reset detection,
// history window assembly, the LLM call, and dispatch of structured function
// calls to the business operations. Failures never escape a turn; the user's
// message is retained so the next turn still has full history.
type Orchestrator struct {
	llm     chatClient
	model   string
	ops     *Operations
	store   *ContextStore
	logger  *logging.Logger
	metrics *metrics.AssistantMetrics

	windowSize int
	llmTimeout time.Duration
}

var _ Service = (*Orchestrator)(nil)

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWindowSize overrides the message window size (system message included).
func WithWindowSize(size int) OrchestratorOption {
	return func(o *Orchestrator) {
		if size > 1 {
			o.windowSize = size
		}
	}
}

// WithLLMTimeout overrides the per-call LLM timeout.
func WithLLMTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.llmTimeout = d
		}
	}
}

// NewOrchestrator wires the dialogue engine.
func NewOrchestrator(llm chatClient, model string, ops *Operations, store *ContextStore, logger *logging.Logger, m *metrics.AssistantMetrics, opts ...OrchestratorOption) *Orchestrator {
	if llm == nil {
		panic("conversation: chat client cannot be nil")
	}
	if ops == nil {
		panic("conversation: operations cannot be nil")
	}
	if store == nil {
		panic("conversation: context store cannot be nil")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if logger == nil {
		logger = logging.Default()
	}

	o := &Orchestrator{
		llm:        llm,
		model:      model,
		ops:        ops,
		store:      store,
		logger:     logger,
		metrics:    m,
		windowSize: defaultWindowSize,
		llmTimeout: defaultLLMTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTurn handles one inbound utterance.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	ctx, span := orchestratorTracer.Start(ctx, "conversation.turn")
	defer span.End()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		o.metrics.ObserveTurn("validation")
		return &TurnResponse{Success: false, SessionID: req.SessionID, Reply: msgEmptyUtterance}, nil
	}

	if IsResetCommand(message) {
		if req.SessionID != "" {
			o.store.Remove(req.SessionID)
		}
		o.metrics.ObserveTurn("reset")
		return &TurnResponse{Success: true, SessionID: req.SessionID, Reply: msgResetAck, WasReset: true}, nil
	}

	session := o.store.Get(req.SessionID)
	sessionID := session.SessionID
	span.SetAttributes(attribute.String("meddist.session_id", sessionID))

	session = o.store.AppendMessage(sessionID, RoleUser, message, "", "")
	window := o.buildWindow(session.Messages)

	resp, err := o.complete(ctx, window)
	if err != nil {
		span.RecordError(err)
		o.logger.Error("llm call failed", "error", err, "session_id", sessionID)
		o.metrics.ObserveTurn("llm_error")
		return &TurnResponse{Success: false, SessionID: sessionID, Reply: msgTurnFailed}, nil
	}

	// Only the first choice is used; parallel calls are not part of the contract.
	choice := resp.Choices[0].Message

	if choice.FunctionCall != nil {
		name := choice.FunctionCall.Name
		rawArgs := choice.FunctionCall.Arguments
		o.store.AppendMessage(sessionID, RoleAssistant, "", name, rawArgs)

		reply, opErr := o.ops.Dispatch(ctx, sessionID, name, rawArgs)
		if opErr != nil {
			span.RecordError(opErr)
			o.logger.Error("function dispatch failed", "error", opErr, "function", name, "session_id", sessionID)
			o.metrics.ObserveFunctionCall(name, "error")
			o.metrics.ObserveTurn("function_error")
			return &TurnResponse{Success: false, SessionID: sessionID, Reply: msgTurnFailed}, nil
		}

		o.store.AppendMessage(sessionID, RoleFunction, reply, name, "")
		o.metrics.ObserveFunctionCall(name, "ok")
		o.metrics.ObserveTurn("function")
		return &TurnResponse{Success: true, SessionID: sessionID, Reply: reply, ExecutedFunction: name}, nil
	}

	if text := strings.TrimSpace(choice.Content); text != "" {
		o.store.AppendMessage(sessionID, RoleAssistant, text, "", "")
		o.metrics.ObserveTurn("text")
		return &TurnResponse{Success: true, SessionID: sessionID, Reply: text}, nil
	}

	o.metrics.ObserveTurn("empty")
	return &TurnResponse{Success: false, SessionID: sessionID, Reply: msgTurnFailed}, nil
}

// buildWindow assembles the bounded LLM input: the fixed system instruction
// followed by the most recent stored messages in chronological order.
func (o *Orchestrator) buildWindow(messages []Message) []openai.ChatCompletionMessage {
	keep := o.windowSize - 1
	if len(messages) > keep {
		messages = messages[len(messages)-keep:]
	}

	window := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	window = append(window, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range messages {
		cm := openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
		if m.Role == RoleAssistant && m.FunctionName != "" {
			cm.FunctionCall = &openai.FunctionCall{Name: m.FunctionName, Arguments: m.FunctionArgs}
		}
		if m.Role == RoleFunction {
			cm.Name = m.FunctionName
		}
		window = append(window, cm)
	}
	return window
}

func (o *Orchestrator) complete(ctx context.Context, window []openai.ChatCompletionMessage) (openai.ChatCompletionResponse, error) {
	ctx, span := orchestratorTracer.Start(ctx, "conversation.llm")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
	defer cancel()

	start := time.Now()
	resp, err := o.llm.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:        o.model,
		Messages:     window,
		Functions:    functionDefinitions(),
		FunctionCall: "auto",
	})
	o.metrics.ObserveLLMLatency(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return resp, fmt.Errorf("conversation: llm completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("conversation: llm returned no choices")
		span.RecordError(err)
		return resp, err
	}
	return resp, nil
}
