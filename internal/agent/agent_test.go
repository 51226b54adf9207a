package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/themoiziqbal/todo-chatbot/internal/conversation"
	"github.com/themoiziqbal/todo-chatbot/internal/models"
	"github.com/themoiziqbal/todo-chatbot/internal/storage"
	"github.com/themoiziqbal/todo-chatbot/internal/tools"
)

// scriptedModel replays a fixed sequence of model responses and records
// every request it saw.
type scriptedModel struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
	err       error
}

func (m *scriptedModel) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.responses) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("script exhausted")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

func toolCallResponse(id, name string, args map[string]any) openai.ChatCompletionResponse {
	payload, _ := json.Marshal(args)
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      name,
						Arguments: string(payload),
					},
				}},
			},
		}},
	}
}

func newTestAgent(t *testing.T, model ModelClient) (*Agent, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	registry := tools.New(store, zap.NewNop()).WithClock(func() time.Time {
		return time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	}).Registry()
	convs := conversation.New(store, zap.NewNop())
	return New(model, registry, convs, nil, zap.NewNop(), Config{
		Model:         "gpt-4o-mini",
		MaxToolRounds: 5,
	}), store
}

func TestChatTurnValidation(t *testing.T) {
	agent, _ := newTestAgent(t, &scriptedModel{})
	ctx := context.Background()

	_, err := agent.ChatTurn(ctx, 1, "", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = agent.ChatTurn(ctx, 1, strings.Repeat("x", 5001), nil)
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestChatTurnLengthCountsCharacters(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionResponse{
		textResponse("got it"),
	}}
	agent, _ := newTestAgent(t, model)
	ctx := context.Background()

	// 4000 Urdu characters exceed 5000 bytes but not 5000 characters.
	res, err := agent.ChatTurn(ctx, 1, strings.Repeat("ک", 4000), nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = agent.ChatTurn(ctx, 1, strings.Repeat("ک", 5001), nil)
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestChatTurnPlainReply(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionResponse{
		textResponse("Hello! How can I help with your tasks?"),
	}}
	agent, store := newTestAgent(t, model)

	res, err := agent.ChatTurn(context.Background(), 1, "hi there", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Hello! How can I help with your tasks?", res.Response)
	assert.Equal(t, "en", res.DetectedLanguage)
	assert.Empty(t, res.ToolCalls)

	// Both sides of the turn are persisted, user first.
	msgs, err := store.RecentMessages(context.Background(), res.ConversationID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)

	// First request carries the system prompt and the tool schemas.
	require.Len(t, model.requests, 1)
	assert.Equal(t, openai.ChatMessageRoleSystem, model.requests[0].Messages[0].Role)
	assert.Len(t, model.requests[0].Tools, 5)
}

func TestChatTurnAddsRecurringTask(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "add_task", map[string]any{
			"title":                  "Team standup",
			"due_date":               "2025-01-13T09:00:00Z",
			"is_recurring":           true,
			"recurrence_pattern":     "weekly",
			"recurrence_day_of_week": 0,
		}),
		textResponse("Done, your weekly standup is set for Mondays at 9am."),
	}}
	agent, store := newTestAgent(t, model)

	res, err := agent.ChatTurn(context.Background(), 42, "remind me about standup every monday at 9", nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "add_task", res.ToolCalls[0].Tool)
	assert.Equal(t, true, res.ToolCalls[0].Result["success"])

	tasks, err := store.ListTasks(context.Background(), 42, storage.TaskFilter{Status: "all"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsRecurring)
	assert.Equal(t, models.RecurrenceWeekly, tasks[0].RecurrencePattern)

	// The tool result round-trips to the model as a role=tool message.
	require.Len(t, model.requests, 2)
	last := model.requests[1].Messages[len(model.requests[1].Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, `"success":true`)
}

func TestChatTurnCompleteSpawnsNextInstance(t *testing.T) {
	model := &scriptedModel{}
	agent, store := newTestAgent(t, model)
	ctx := context.Background()

	due := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	seed := &models.Task{
		UserID:             7,
		Title:              "Water plants",
		Priority:           models.PriorityMedium,
		DueDate:            &due,
		IsRecurring:        true,
		RecurrencePattern:  models.RecurrenceDaily,
		RecurrenceInterval: 1,
		RecurrenceActive:   true,
	}
	require.NoError(t, store.CreateTask(ctx, seed))

	model.responses = []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "complete_task", map[string]any{"task_id": seed.ID}),
		textResponse("Marked it done. Next one is due tomorrow at 8am."),
	}

	res, err := agent.ChatTurn(ctx, 7, "I watered the plants", nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.ToolCalls, 1)

	data := res.ToolCalls[0].Result["data"].(map[string]any)
	require.Contains(t, data, "next_task_id")

	next, err := store.GetTask(ctx, 7, data["next_task_id"].(int64))
	require.NoError(t, err)
	require.NotNil(t, next.DueDate)
	assert.Equal(t, due.AddDate(0, 0, 1), *next.DueDate)
	require.NotNil(t, next.ParentRecurrenceID)
	assert.Equal(t, seed.ID, *next.ParentRecurrenceID)
}

func TestChatTurnUnknownToolFedBackToModel(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionResponse{
		toolCallResponse("call_1", "send_email", map[string]any{"to": "boss"}),
		textResponse("I can only manage tasks, not send email."),
	}}
	agent, _ := newTestAgent(t, model)

	res, err := agent.ChatTurn(context.Background(), 1, "email my boss", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.ToolCalls)

	last := model.requests[1].Messages[len(model.requests[1].Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Contains(t, last.Content, "Unknown tool")
}

func TestChatTurnToolBudget(t *testing.T) {
	// A model that calls a tool whenever tools are offered must still get
	// a final text answer out of the tool-less last round.
	greedy := &greedyModel{}
	agent, _ := newTestAgent(t, greedy)

	res, err := agent.ChatTurn(context.Background(), 1, "list everything repeatedly", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "final answer", res.Response)
	assert.Len(t, res.ToolCalls, 5)
	assert.Equal(t, 6, greedy.calls)
}

type greedyModel struct {
	calls int
}

func (m *greedyModel) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.calls++
	if len(req.Tools) > 0 {
		return toolCallResponse(fmt.Sprintf("call_%d", m.calls), "list_tasks", map[string]any{}), nil
	}
	return textResponse("final answer"), nil
}

type deadlineModel struct {
	deadlines []bool
}

func (m *deadlineModel) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	_, ok := ctx.Deadline()
	m.deadlines = append(m.deadlines, ok)
	if len(req.Tools) > 0 && len(m.deadlines) == 1 {
		return toolCallResponse("call_1", "list_tasks", map[string]any{}), nil
	}
	return textResponse("done"), nil
}

func TestChatTurnModelCallsAreBounded(t *testing.T) {
	model := &deadlineModel{}
	agent, _ := newTestAgent(t, model)

	res, err := agent.ChatTurn(context.Background(), 1, "show my tasks", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	// Every model call, including follow-ups after tool rounds, must carry
	// a deadline even when the caller's context has none.
	require.Len(t, model.deadlines, 2)
	for _, hasDeadline := range model.deadlines {
		assert.True(t, hasDeadline)
	}
}

func TestChatTurnForbiddenConversation(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionResponse{
		textResponse("hi"),
	}}
	agent, store := newTestAgent(t, model)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, 1)
	require.NoError(t, err)

	_, err = agent.ChatTurn(ctx, 2, "hello", &conv.ID)
	assert.ErrorIs(t, err, storage.ErrForbidden)
}

func TestChatTurnModelFailureApologizes(t *testing.T) {
	model := &scriptedModel{err: errors.New("upstream timeout")}
	agent, store := newTestAgent(t, model)

	res, err := agent.ChatTurn(context.Background(), 1, "hello", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, apologyResponse, res.Response)

	// Failed turns leave no trace in history.
	msgs, err := store.RecentMessages(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestChatTurnContinuesConversation(t *testing.T) {
	model := &scriptedModel{responses: []openai.ChatCompletionResponse{
		textResponse("first reply"),
		textResponse("second reply"),
	}}
	agent, _ := newTestAgent(t, model)
	ctx := context.Background()

	res, err := agent.ChatTurn(ctx, 1, "first message", nil)
	require.NoError(t, err)

	res2, err := agent.ChatTurn(ctx, 1, "second message", &res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, res.ConversationID, res2.ConversationID)

	// The second request replays the first exchange before the new message.
	req := model.requests[1]
	var contents []string
	for _, m := range req.Messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "first message")
	assert.Contains(t, contents, "first reply")
	assert.Equal(t, "second message", contents[len(contents)-1])
}
