package api

import "github.com/google/uuid"

type StartSessionRequest struct {
	JobId uuid.UUID `json:"job_id"`
	Title string    `json:"title"`
}

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type ChatHistoryItem struct {
	MessageType string `json:"message_type"` // "user" or "ai"
	Content     string `json:"content"`
	Timestamp   string `json:"timestamp"`
	Metadata    any    `json:"metadata,omitempty"`
}
