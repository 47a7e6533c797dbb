package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"eda-backend/internal/chat"
	"eda-backend/internal/database"
	"eda-backend/internal/profile"
	"eda-backend/pkg/api"
)

type ChatService struct {
	db       *gorm.DB
	sessions *chat.SessionCache

	model   string
	apiKey  string
	baseURL string
}

func NewChatService(db *gorm.DB, model, apiKey, baseURL string) *ChatService {
	return &ChatService{
		db:       db,
		sessions: chat.NewSessionCache(16),
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
	}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Get("/sessions", RestHandler(s.GetSessions))
		r.Post("/sessions", RestHandler(s.StartSession))
		r.Get("/sessions/{session_id}", RestHandler(s.GetSession))
		r.Post("/sessions/{session_id}/rename", RestHandler(s.RenameSession))
		r.Delete("/sessions/{session_id}", RestHandler(s.DeleteSession))
		r.Post("/sessions/{session_id}/messages", RestHandler(s.SendMessage))
		r.Get("/sessions/{session_id}/history", RestHandler(s.GetHistory))
	})
}

func (s *ChatService) GetSessions(r *http.Request) (any, error) {
	sessions, err := chat.GetSessions(s.db)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *ChatService) loadJobReport(jobId uuid.UUID) (*profile.Report, error) {
	var job database.ProfileJob
	if err := s.db.First(&job, "id = ?", jobId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "profile job not found")
		}
		return nil, err
	}

	if job.Status != database.JobCompleted || len(job.ReportJSON) == 0 {
		return nil, CodedErrorf(http.StatusConflict, "profile job has no completed report to chat about")
	}

	var report profile.Report
	if err := json.Unmarshal(job.ReportJSON, &report); err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "stored report is unreadable: %v", err)
	}
	return &report, nil
}

func (s *ChatService) StartSession(r *http.Request) (any, error) {
	req, err := ParseRequest[api.StartSessionRequest](r)
	if err != nil {
		return nil, err
	}

	if _, err := s.loadJobReport(req.JobId); err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	err = chat.CreateSession(s.db, &database.ChatSession{
		ID:    sessionID,
		JobId: req.JobId,
		Title: req.Title,
	})
	if err != nil {
		return nil, err
	}

	return api.StartSessionResponse{SessionID: sessionID.String()}, nil
}

func (s *ChatService) GetSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	session, err := chat.GetSession(s.db, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "chat session not found")
		}
		return nil, err
	}

	return session, nil
}

func (s *ChatService) RenameSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}
	req, err := ParseRequest[api.RenameSessionRequest](r)
	if err != nil {
		return nil, err
	}

	if err := chat.UpdateSessionTitle(s.db, sessionID, req.Title); err != nil {
		return nil, err
	}

	return nil, nil
}

func (s *ChatService) DeleteSession(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	if err := chat.DeleteSession(s.db, sessionID); err != nil {
		return nil, err
	}

	return nil, nil
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.ChatRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Message == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "message is required")
	}

	sessionRecord, err := chat.GetSession(s.db, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "chat session not found")
		}
		return nil, err
	}

	report, err := s.loadJobReport(sessionRecord.JobId)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(s.db, sessionID, s.model, s.apiKey, s.baseURL, report)
	if err != nil {
		return nil, err
	}

	reply, err := session.Chat(r.Context(), req.Message)
	if err != nil {
		return nil, err
	}

	return api.ChatResponse{Reply: reply}, nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	sessionID, err := URLParamUUID(r, "session_id")
	if err != nil {
		return nil, err
	}

	history, err := chat.GetChatHistory(s.db, sessionID)
	if err != nil {
		return nil, err
	}

	var resp []api.ChatHistoryItem
	for _, msg := range history {
		resp = append(resp, api.ChatHistoryItem{
			MessageType: msg.MessageType,
			Content:     msg.Content,
			Timestamp:   formatTimestamp(msg.Timestamp),
			Metadata:    msg.Metadata,
		})
	}

	return resp, nil
}
