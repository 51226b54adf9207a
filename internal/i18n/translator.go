package i18n

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatCompleter is the slice of the OpenAI client the translator needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Translator routes text through the English pivot using the language
// model. Translation failures degrade to the original text: availability
// over fidelity, a turn is never blocked by a translation outage.
type Translator struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewTranslator(client ChatCompleter, model string, timeout time.Duration, logger *zap.Logger) *Translator {
	return &Translator{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// ToEnglish translates text from sourceLang into English. Returns the
// original text unchanged when sourceLang is already English or the
// translation call fails.
func (t *Translator) ToEnglish(ctx context.Context, text, sourceLang string) string {
	if sourceLang == LangEnglish {
		return text
	}

	prompt := fmt.Sprintf(`You are a professional translator. Translate the following %s text to English.

Rules:
- Preserve the intent and meaning
- Maintain task-related terminology (todo, task, priority, category, etc.)
- Keep it natural and conversational
- Return ONLY the translated text, no explanations`, LanguageName(sourceLang))

	translated, err := t.translate(ctx, prompt, text)
	if err != nil {
		t.logger.Warn("Translation to English failed, using original text",
			zap.Error(err),
			zap.String("source_language", sourceLang))
		return text
	}
	return translated
}

// FromEnglish translates English text into targetLang, falling back to the
// English text on failure.
func (t *Translator) FromEnglish(ctx context.Context, text, targetLang string) string {
	if targetLang == LangEnglish {
		return text
	}

	name := LanguageName(targetLang)
	prompt := fmt.Sprintf(`You are a professional translator. Translate the following English text to %s.

Rules:
- Preserve the intent and meaning
- Maintain task-related terminology appropriately
- Keep it natural and conversational
- Use proper %s grammar and script
- Return ONLY the translated text, no explanations`, name, name)

	translated, err := t.translate(ctx, prompt, text)
	if err != nil {
		t.logger.Warn("Translation from English failed, using pivot text",
			zap.Error(err),
			zap.String("target_language", targetLang))
		return text
	}
	return translated
}

func (t *Translator) translate(ctx context.Context, systemPrompt, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty translation response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
