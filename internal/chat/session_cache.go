package chat

import (
	"sync"
	"time"

	"eda-backend/internal/profile"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type sessionEntry struct {
	session      *ChatSession
	lastAccessed time.Time
}

// SessionCache keeps live chat sessions so repeated messages on the same
// session reuse the client and report context.
type SessionCache struct {
	lock     sync.Mutex
	sessions map[uuid.UUID]*sessionEntry
	maxSize  int
}

func NewSessionCache(maxSize int) *SessionCache {
	return &SessionCache{
		sessions: make(map[uuid.UUID]*sessionEntry, maxSize),
		maxSize:  maxSize,
	}
}

func (pool *SessionCache) GetSession(db *gorm.DB, sessionID uuid.UUID, model, apiKey, baseURL string, report *profile.Report) (*ChatSession, error) {
	pool.lock.Lock()
	defer pool.lock.Unlock()

	if entry, exists := pool.sessions[sessionID]; exists {
		entry.lastAccessed = time.Now()
		return entry.session, nil
	}

	if len(pool.sessions) >= pool.maxSize {
		oldestSessionID := uuid.Nil
		var oldestTime time.Time
		for id, entry := range pool.sessions {
			if oldestSessionID == uuid.Nil || entry.lastAccessed.Before(oldestTime) {
				oldestSessionID = id
				oldestTime = entry.lastAccessed
			}
		}
		delete(pool.sessions, oldestSessionID)
	}

	session, err := NewChatSession(db, sessionID.String(), model, apiKey, baseURL, report)
	if err != nil {
		return nil, err
	}
	pool.sessions[sessionID] = &sessionEntry{
		session:      session,
		lastAccessed: time.Now(),
	}

	return session, nil
}
