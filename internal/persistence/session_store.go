package persistence

import (
	"encoding/json"
	"log/slog"

	"github.com/lucerna-ai/lucerna/internal/agent"
)

// SessionStore persists a conversation's message history as one JSON file
// per session, atomically.
type SessionStore struct {
	layout Layout
	logger *slog.Logger
}

// NewSessionStore builds a session store rooted at layout.BaseDir.
func NewSessionStore(layout Layout, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{layout: layout, logger: logger.With("component", "session_store")}
}

// Save writes sessionID's full message history.
func (s *SessionStore) Save(sessionID string, messages []agent.Message) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.layout.SessionFile(sessionID), data, 0o600)
}

// Load reads sessionID's message history, returning nil (not an error) if
// the session has never been saved.
func (s *SessionStore) Load(sessionID string) ([]agent.Message, error) {
	data, err := ReadFileOrEmpty(s.layout.SessionFile(sessionID))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var messages []agent.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
