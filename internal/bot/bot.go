package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/themoiziqbal/todo-chatbot/internal/agent"
	"github.com/themoiziqbal/todo-chatbot/internal/models"
	"github.com/themoiziqbal/todo-chatbot/internal/storage"
)

type Bot struct {
	api     *tgbotapi.BotAPI
	agent   *agent.Agent
	storage storage.Storage
	logger  *zap.Logger

	mu            sync.Mutex
	conversations map[int64]int64 // chat id -> conversation id
}

func New(token string, agent *agent.Agent, storage storage.Storage, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:           api,
		agent:         agent,
		storage:       storage,
		logger:        logger,
		conversations: make(map[int64]int64),
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}

		go b.handleMessage(update.Message)
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	text := message.Text
	if message.Caption != "" {
		text = message.Caption
	}
	if strings.TrimSpace(text) == "" {
		b.sendMessage(message.Chat.ID, "Please send me a text message about your tasks.")
		return
	}

	conversationID := b.conversationFor(message.Chat.ID)

	result, err := b.agent.ChatTurn(ctx, message.From.ID, text, conversationID)
	if err != nil {
		if errors.Is(err, agent.ErrMessageTooLong) {
			b.sendErrorMessage(message.Chat.ID, "That message is too long. Please keep it under 5000 characters.")
			return
		}
		b.logger.Error("Chat turn failed",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, something went wrong. Please try again.")
		return
	}

	b.rememberConversation(message.Chat.ID, result.ConversationID)

	msg := tgbotapi.NewMessage(message.Chat.ID, result.Response)
	msg.ReplyToMessageID = message.MessageID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send response",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "tasks":
		b.handleTasks(ctx, message)
	case "new":
		b.handleNew(message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Welcome to TodoBot! ✅
I'm your personal task assistant. Just tell me what you need in plain language:

"remind me to pay rent on the 1st of every month"
"what's on my list for this week?"
"I finished the grocery shopping"

I speak English, Urdu, Arabic, Chinese and Turkish.
Use /help to see all available commands.`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Available commands:
/start - Start the bot
/help - Show this help message
/tasks - Show your pending tasks
/new - Start a fresh conversation

Or just talk to me:
- "add a task to call the dentist tomorrow at 3pm"
- "show my high priority tasks"
- "mark task 12 as done"
- "delete the standup task"

Recurring tasks are supported: daily, weekly and monthly.
When you complete a recurring task, I schedule the next one automatically.`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleTasks(ctx context.Context, message *tgbotapi.Message) {
	tasks, err := b.storage.ListTasks(ctx, message.From.ID, storage.TaskFilter{
		Status:    "pending",
		SortBy:    "due_date",
		SortOrder: "asc",
	})
	if err != nil {
		b.logger.Error("Failed to list tasks",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your tasks. Please try again later.")
		return
	}

	if len(tasks) == 0 {
		b.sendMessage(message.Chat.ID, "You have no pending tasks. 🎉")
		return
	}

	response := "*Your pending tasks:*\n\n"
	for _, task := range tasks {
		response += formatTaskLine(task)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, response)
	msg.ParseMode = "MarkdownV2"
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send task list",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID))
	}
}

func (b *Bot) handleNew(message *tgbotapi.Message) {
	b.mu.Lock()
	delete(b.conversations, message.Chat.ID)
	b.mu.Unlock()

	b.sendMessage(message.Chat.ID, "Started a fresh conversation. What can I do for you?")
}

func formatTaskLine(task *models.Task) string {
	line := fmt.Sprintf("*%d\\.* %s", task.ID, escapeMarkdown(task.Title))
	if task.Priority == models.PriorityHigh {
		line += " ❗"
	}
	if task.DueDate != nil {
		line += fmt.Sprintf("\n   _due %s_", escapeMarkdown(task.DueDate.Format("Mon, 2 Jan 15:04")))
	}
	if task.IsRecurring {
		line += fmt.Sprintf("\n   _repeats %s_", escapeMarkdown(string(task.RecurrencePattern)))
	}
	return line + "\n\n"
}

// Notify delivers a due-task reminder to the task owner's chat. Telegram
// user and chat ids coincide for private chats, which is the only mode the
// bot runs in.
func (b *Bot) Notify(userID int64, task *models.Task) error {
	text := fmt.Sprintf("⏰ Reminder: %q", task.Title)
	if task.DueDate != nil {
		text += fmt.Sprintf(" is due at %s", task.DueDate.Format("15:04"))
	}

	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}

func (b *Bot) conversationFor(chatID int64) *int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.conversations[chatID]; ok {
		return &id
	}
	return nil
}

func (b *Bot) rememberConversation(chatID, conversationID int64) {
	b.mu.Lock()
	b.conversations[chatID] = conversationID
	b.mu.Unlock()
}

func escapeMarkdown(text string) string {
	specialChars := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
