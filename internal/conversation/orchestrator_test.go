package conversation

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	responses []openai.ChatCompletionResponse
	err       error
	requests  []openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func textResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}},
	}}
}

func functionResponse(name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{
			Role:         openai.ChatMessageRoleAssistant,
			FunctionCall: &openai.FunctionCall{Name: name, Arguments: args},
		}},
	}}
}

func newTestOrchestrator(llm chatClient, store *ContextStore, opts ...OrchestratorOption) *Orchestrator {
	ops := newTestOperations(&fakeCRM{}, &fakeCatalogs{}, store)
	return NewOrchestrator(llm, "test-model", ops, store, nil, nil, opts...)
}

func TestProcessTurnRejectsEmptyMessage(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{}
	orch := newTestOrchestrator(llm, store)

	resp, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "   "})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, msgEmptyUtterance, resp.Reply)
	assert.Empty(t, llm.requests, "LLM must not be called for empty input")
}

func TestProcessTurnResetShortCircuitsLLM(t *testing.T) {
	store := newTestStore()
	store.AppendMessage("s1", RoleUser, "привет", "", "")
	llm := &fakeChatClient{}
	orch := newTestOrchestrator(llm, store)

	resp, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "отмена"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.WasReset)
	assert.Equal(t, msgResetAck, resp.Reply)
	assert.Empty(t, llm.requests)
	assert.Empty(t, store.Get("s1").Messages, "reset discards the session history")
}

func TestProcessTurnTextReply(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{responses: []openai.ChatCompletionResponse{textResponse("Здравствуйте! Чем помочь?")}}
	orch := newTestOrchestrator(llm, store)

	resp, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "привет"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Здравствуйте! Чем помочь?", resp.Reply)
	assert.Empty(t, resp.ExecutedFunction)

	msgs := store.Get("s1").Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
}

func TestProcessTurnFunctionCallFlow(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{responses: []openai.ChatCompletionResponse{
		functionResponse(FnSearchOrganizations, `{"organizationName":""}`),
	}}
	orch := newTestOrchestrator(llm, store)

	resp, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "найди аптеку"})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, FnSearchOrganizations, resp.ExecutedFunction)
	assert.Contains(t, resp.Reply, "Укажите название")

	// user, assistant function-call, function result
	msgs := store.Get("s1").Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, FnSearchOrganizations, msgs[1].FunctionName)
	assert.Equal(t, RoleFunction, msgs[2].Role)
	assert.Equal(t, resp.Reply, msgs[2].Content)
}

func TestProcessTurnLLMFailureKeepsUserMessage(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{err: errors.New("rate limited")}
	orch := newTestOrchestrator(llm, store)

	resp, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "сделай бронь"})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, msgTurnFailed, resp.Reply)
	assert.NotContains(t, resp.Reply, "rate limited")

	msgs := store.Get("s1").Messages
	require.Len(t, msgs, 1, "failed turn still records the user message")
	assert.Equal(t, RoleUser, msgs[0].Role)
}

func TestProcessTurnDispatchErrorReturnsFallback(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{responses: []openai.ChatCompletionResponse{
		functionResponse("nonexistent_function", `{}`),
	}}
	orch := newTestOrchestrator(llm, store)

	resp, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "запрос"})

	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, msgTurnFailed, resp.Reply)
}

func TestProcessTurnGeneratesSessionID(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{responses: []openai.ChatCompletionResponse{textResponse("ок")}}
	orch := newTestOrchestrator(llm, store)

	resp, err := orch.ProcessTurn(context.Background(), TurnRequest{Message: "привет"})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
}

func TestBuildWindowBoundsHistory(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{responses: []openai.ChatCompletionResponse{textResponse("ок")}}
	orch := newTestOrchestrator(llm, store, WithWindowSize(4))

	for i := 0; i < 10; i++ {
		store.AppendMessage("s1", RoleUser, "старое сообщение", "", "")
	}

	_, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "новое"})
	require.NoError(t, err)

	require.Len(t, llm.requests, 1)
	window := llm.requests[0].Messages
	require.Len(t, window, 4, "system message plus windowSize-1 history entries")
	assert.Equal(t, openai.ChatMessageRoleSystem, window[0].Role)
	assert.Equal(t, "новое", window[len(window)-1].Content)
}

func TestBuildWindowRestoresFunctionMessages(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{responses: []openai.ChatCompletionResponse{textResponse("ок")}}
	orch := newTestOrchestrator(llm, store)

	store.AppendMessage("s1", RoleUser, "покажи остаток", "", "")
	store.AppendMessage("s1", RoleAssistant, "", FnGetDrugStock, `{"drugName":"аспирин"}`)
	store.AppendMessage("s1", RoleFunction, "Аспирин: в наличии 50 уп.", FnGetDrugStock, "")

	_, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "а парацетамол?"})
	require.NoError(t, err)

	window := llm.requests[0].Messages
	var fnCall, fnResult *openai.ChatCompletionMessage
	for i := range window {
		switch {
		case window[i].FunctionCall != nil:
			fnCall = &window[i]
		case window[i].Role == RoleFunction:
			fnResult = &window[i]
		}
	}
	require.NotNil(t, fnCall, "assistant function call must be replayed")
	assert.Equal(t, FnGetDrugStock, fnCall.FunctionCall.Name)
	require.NotNil(t, fnResult)
	assert.Equal(t, FnGetDrugStock, fnResult.Name)
}

func TestCompleteSendsFunctionDefinitions(t *testing.T) {
	store := newTestStore()
	llm := &fakeChatClient{responses: []openai.ChatCompletionResponse{textResponse("ок")}}
	orch := newTestOrchestrator(llm, store)

	_, err := orch.ProcessTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "привет"})
	require.NoError(t, err)

	require.Len(t, llm.requests, 1)
	req := llm.requests[0]
	assert.Equal(t, "test-model", req.Model)
	assert.Len(t, req.Functions, 6)
	assert.Equal(t, "auto", req.FunctionCall)
}