// Package session keeps per-conversation state: the message history, media
// attached to assistant turns, uploaded documents, and feedback.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	medagent "medagent/agent"
)

// Message is one turn of the conversation.
type Message struct {
	Role    string
	Content string
	TraceID string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Manager holds the state of one chat session. Safe for concurrent use.
type Manager struct {
	mu sync.RWMutex

	id        string
	messages  []Message
	images    map[string][]medagent.MediaFile
	html      map[string][]medagent.HTMLFile
	documents []medagent.InputDocument
	feedback  map[string]string
}

// NewManager creates a session with a fresh random id.
func NewManager() *Manager {
	return NewManagerWithID(uuid.NewString())
}

// NewManagerWithID creates a session with a caller-provided id, used when
// resuming a conversation.
func NewManagerWithID(id string) *Manager {
	return &Manager{
		id:       id,
		images:   make(map[string][]medagent.MediaFile),
		html:     make(map[string][]medagent.HTMLFile),
		feedback: make(map[string]string),
	}
}

// ID returns the session id.
func (m *Manager) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// AddUserMessage appends a user turn.
func (m *Manager) AddUserMessage(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Role: RoleUser, Content: content})
}

// AddAssistantMessage appends an assistant turn and stores any media the
// turn produced, keyed by its trace id.
func (m *Manager) AddAssistantMessage(content, traceID string, images []medagent.MediaFile, html []medagent.HTMLFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, Message{Role: RoleAssistant, Content: content, TraceID: traceID})
	if len(images) > 0 {
		m.images[traceID] = images
	}
	if len(html) > 0 {
		m.html[traceID] = html
	}
}

// Messages returns a copy of the conversation so far.
func (m *Manager) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// MessageImages returns the images attached to the turn with the given
// trace id.
func (m *Manager) MessageImages(traceID string) []medagent.MediaFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.images[traceID]
}

// MessageHTML returns the HTML files attached to the turn with the given
// trace id.
func (m *Manager) MessageHTML(traceID string) []medagent.HTMLFile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.html[traceID]
}

// SetDocuments replaces the documents attached to the session.
func (m *Manager) SetDocuments(docs []medagent.InputDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = docs
}

// Documents returns the documents attached to the session.
func (m *Manager) Documents() []medagent.InputDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.documents
}

// SetFeedback records user feedback for a trace.
func (m *Manager) SetFeedback(traceID, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback[traceID] = state
}

// Feedback returns the feedback recorded for a trace, if any.
func (m *Manager) Feedback(traceID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.feedback[traceID]
	return state, ok
}

// Transcript renders the whole conversation as a single prompt so the
// agent sees prior turns. Each message becomes "role:<role>
// content:<content>", joined by blank lines.
func (m *Manager) Transcript() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	parts := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		parts = append(parts, fmt.Sprintf("role:%s content:%s", msg.Role, msg.Content))
	}
	return strings.Join(parts, "\n\n")
}

// Reset clears all state and assigns a fresh session id.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = uuid.NewString()
	m.messages = nil
	m.documents = nil
	m.images = make(map[string][]medagent.MediaFile)
	m.html = make(map[string][]medagent.HTMLFile)
	m.feedback = make(map[string]string)
}
