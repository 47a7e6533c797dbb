package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"eda-backend/internal/database"
	"eda-backend/internal/narrative"
	"eda-backend/internal/profile"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatSession answers questions about a completed profile job. Each model
// call includes the report facts so answers stay anchored to the computed
// statistics.
type ChatSession struct {
	mu           sync.Mutex
	db           *gorm.DB
	sessionID    string
	model        string
	openAIClient *openai.LLM
	reportFacts  string
}

func NewChatSession(db *gorm.DB, sessionID, model, apiKey, baseURL string, report *profile.Report) (*ChatSession, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create OpenAI client: %v", err)
	}

	return &ChatSession{
		db:           db,
		sessionID:    sessionID,
		model:        model,
		openAIClient: client,
		reportFacts:  narrative.BuildProfilePrompt(report),
	}, nil
}

func (session *ChatSession) Chat(ctx context.Context, userInput string) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if err := session.saveMessage("user", userInput, nil); err != nil {
		return "", err
	}

	history, err := session.getChatHistory()
	if err != nil {
		return "", err
	}

	conversation := ""
	for _, msg := range history {
		conversation += fmt.Sprintf("%s: %s\n", msg.MessageType, msg.Content)
	}

	reply, err := session.getModelResponse(ctx, conversation)
	if err != nil {
		return "", err
	}

	if err := session.saveMessage("ai", reply, nil); err != nil {
		return "", err
	}

	return reply, nil
}

func (session *ChatSession) getModelResponse(ctx context.Context, conversation string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, narrative.ChatSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeSystem, session.reportFacts),
		llms.TextParts(llms.ChatMessageTypeHuman, conversation),
	}

	resp, err := session.openAIClient.GenerateContent(ctx, messages)
	if err != nil {
		slog.Error("error calling chat completion api", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Content, nil
}

func (session *ChatSession) saveMessage(messageType, content string, metadata map[string]string) error {
	var metadataJSON []byte = nil
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("could not marshal metadata: %v", err)
		}
		metadataJSON = b
	}

	chatMessage := database.ChatHistory{
		SessionID:   session.sessionID,
		MessageType: messageType,
		Content:     content,
		Metadata:    datatypes.JSON(metadataJSON),
	}
	return SaveChatMessage(session.db, &chatMessage)
}

func (session *ChatSession) getChatHistory() ([]database.ChatHistory, error) {
	var history []database.ChatHistory
	err := session.db.Where("session_id = ?", session.sessionID).Order("timestamp ASC").Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}
