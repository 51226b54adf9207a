package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/themoiziqbal/todo-chatbot/internal/conversation"
	"github.com/themoiziqbal/todo-chatbot/internal/i18n"
	"github.com/themoiziqbal/todo-chatbot/internal/models"
	"github.com/themoiziqbal/todo-chatbot/internal/storage"
	"github.com/themoiziqbal/todo-chatbot/internal/tools"
)

const maxMessageLength = 5000

const apologyResponse = "I'm sorry, I encountered an error processing your request. Please try again."

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", maxMessageLength)
)

// ModelClient is the slice of the OpenAI client the agent needs.
type ModelClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	Model           string
	MaxTokens       int
	Temperature     float32
	MaxToolRounds   int
	ContextMessages int
	CallTimeout     time.Duration
}

// Agent runs one stateless chat turn at a time: detect language, load
// history, loop the model over tool calls, translate back and persist.
type Agent struct {
	client        ModelClient
	registry      *tools.Registry
	conversations *conversation.Service
	translator    *i18n.Translator
	logger        *zap.Logger
	cfg           Config
}

func New(client ModelClient, registry *tools.Registry, conversations *conversation.Service,
	translator *i18n.Translator, logger *zap.Logger, cfg Config) *Agent {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}
	if cfg.ContextMessages <= 0 {
		cfg.ContextMessages = 20
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = time.Minute
	}
	return &Agent{
		client:        client,
		registry:      registry,
		conversations: conversations,
		translator:    translator,
		logger:        logger,
		cfg:           cfg,
	}
}

// TurnResult is what one chat turn produced.
type TurnResult struct {
	ConversationID   int64             `json:"conversation_id"`
	Response         string            `json:"response"`
	ToolCalls        []models.ToolCall `json:"tool_calls,omitempty"`
	DetectedLanguage string            `json:"detected_language"`
	Success          bool              `json:"success"`
}

// ChatTurn processes one user message end to end. Validation problems and
// foreign-conversation access come back as errors; internal failures come
// back as a Success=false result carrying an apology, so the caller always
// has something to show the user.
func (a *Agent) ChatTurn(ctx context.Context, userID int64, text string, conversationID *int64) (*TurnResult, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, ErrMessageTooLong
	}

	requestID := uuid.NewString()
	logger := a.logger.With(
		zap.String("request_id", requestID),
		zap.Int64("user_id", userID))

	lang := i18n.Detect(text)
	english := text
	if a.translator != nil {
		english = a.translator.ToEnglish(ctx, text, lang)
	}

	conv, err := a.conversations.GetOrCreate(ctx, userID, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrForbidden) {
			return nil, err
		}
		logger.Error("Failed to resolve conversation", zap.Error(err))
		return a.apology(lang), nil
	}
	logger = logger.With(zap.Int64("conversation_id", conv.ID))

	history, err := a.conversations.Recent(ctx, conv.ID, a.cfg.ContextMessages)
	if err != nil {
		logger.Error("Failed to load conversation history", zap.Error(err))
		return a.apology(lang), nil
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: english,
	})

	response, toolCalls, err := a.runModelLoop(ctx, logger, userID, messages)
	if err != nil {
		logger.Error("Chat turn failed", zap.Error(err))
		return a.apology(lang), nil
	}

	final := response
	if a.translator != nil {
		final = a.translator.FromEnglish(ctx, response, lang)
	}

	// History keeps the user's original wording, not the English pivot.
	if err := a.conversations.Append(ctx, conv.ID, userID, models.RoleUser, text, lang); err != nil {
		logger.Error("Failed to persist user message", zap.Error(err))
	} else if err := a.conversations.Append(ctx, conv.ID, userID, models.RoleAssistant, final, lang); err != nil {
		logger.Error("Failed to persist assistant message", zap.Error(err))
	}

	logger.Info("Chat turn completed",
		zap.String("language", lang),
		zap.Int("tool_calls", len(toolCalls)))

	return &TurnResult{
		ConversationID:   conv.ID,
		Response:         final,
		ToolCalls:        toolCalls,
		DetectedLanguage: lang,
		Success:          true,
	}, nil
}

// runModelLoop drives the model until it answers with text or the round
// budget runs out. The final round withholds the tool schemas so the model
// has to produce an answer.
func (a *Agent) runModelLoop(ctx context.Context, logger *zap.Logger, userID int64,
	messages []openai.ChatCompletionMessage) (string, []models.ToolCall, error) {

	var executed []models.ToolCall

	for round := 0; round <= a.cfg.MaxToolRounds; round++ {
		req := openai.ChatCompletionRequest{
			Model:       a.cfg.Model,
			Messages:    messages,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: a.cfg.Temperature,
		}
		if round < a.cfg.MaxToolRounds {
			req.Tools = a.registry.Schemas()
		}

		// A hung upstream must not hang the turn.
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
		resp, err := a.client.CreateChatCompletion(callCtx, req)
		cancel()
		if err != nil {
			return "", nil, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", nil, errors.New("chat completion returned no choices")
		}
		choice := resp.Choices[0].Message

		if len(choice.ToolCalls) == 0 {
			return choice.Content, executed, nil
		}

		messages = append(messages, choice)
		for _, call := range choice.ToolCalls {
			result := a.executeToolCall(ctx, logger, userID, call, &executed)
			payload, err := json.Marshal(result)
			if err != nil {
				return "", nil, fmt.Errorf("marshal tool result: %w", err)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(payload),
				ToolCallID: call.ID,
			})
		}
	}

	return "", nil, fmt.Errorf("no final response after %d tool rounds", a.cfg.MaxToolRounds)
}

// executeToolCall runs a single tool call. Bad arguments and unknown tool
// names become error envelopes fed back to the model instead of aborting
// the turn.
func (a *Agent) executeToolCall(ctx context.Context, logger *zap.Logger, userID int64,
	call openai.ToolCall, executed *[]models.ToolCall) map[string]any {

	name := call.Function.Name

	var args map[string]any
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			logger.Warn("Model produced malformed tool arguments",
				zap.String("tool", name),
				zap.Error(err))
			return map[string]any{
				"success":    false,
				"message":    "Tool arguments were not valid JSON",
				"error_code": "VALIDATION_ERROR",
			}
		}
	}

	result, err := a.registry.Execute(ctx, name, userID, args)
	if errors.Is(err, tools.ErrToolNotFound) {
		logger.Warn("Model requested unknown tool", zap.String("tool", name))
		return map[string]any{
			"success":    false,
			"message":    fmt.Sprintf("Unknown tool: %s", name),
			"error_code": "VALIDATION_ERROR",
		}
	}
	if err != nil {
		logger.Error("Tool execution failed",
			zap.String("tool", name),
			zap.Error(err))
		return map[string]any{
			"success":    false,
			"message":    "Tool execution failed",
			"error_code": "SERVER_ERROR",
		}
	}

	logger.Info("Executed tool",
		zap.String("tool", name),
		zap.Any("success", result["success"]))
	*executed = append(*executed, models.ToolCall{
		Tool:   name,
		Args:   args,
		Result: result,
	})
	return result
}

func (a *Agent) apology(lang string) *TurnResult {
	msg := apologyResponse
	if a.translator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		msg = a.translator.FromEnglish(ctx, apologyResponse, lang)
	}
	return &TurnResult{
		Response:         msg,
		DetectedLanguage: lang,
		Success:          false,
	}
}
