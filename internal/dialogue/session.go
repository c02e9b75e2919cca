// Package dialogue runs the per-session conversation: persona diagnosis, then
// chat turns guarded so that only one turn is in flight per session.
package dialogue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"protein-advisor/internal/models"
)

type State string

const (
	StateDiagnosis      State = "diagnosis"
	StateChatIdle       State = "chat-idle"
	StateChatProcessing State = "chat-processing"
)

var (
	ErrSessionNotChatting = errors.New("SESSION_NOT_CHATTING")
	ErrPersonaLocked      = errors.New("PERSONA_LOCKED")
	ErrEmptyTurn          = errors.New("EMPTY_TURN")
)

// Session is the explicit per-user conversation state. All fields are
// guarded by mu; callers only see copies.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu            sync.Mutex
	chatting      bool
	processing    bool
	persona       models.Persona
	turns         []models.Turn
	lastSelection *models.SelectionResult
	lastActive    time.Time
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		persona:    models.DefaultPersona(),
		lastActive: now,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	switch {
	case !s.chatting:
		return StateDiagnosis
	case s.processing:
		return StateChatProcessing
	default:
		return StateChatIdle
	}
}

func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

func (s *Session) Persona() models.Persona {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona.Clone()
}

// UpdatePersona replaces the persona. Only allowed during diagnosis.
func (s *Session) UpdatePersona(p models.Persona, cat *models.Catalog, now time.Time) error {
	if err := p.Validate(cat); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatting {
		return fmt.Errorf("%w: session %s is already chatting", ErrPersonaLocked, s.ID)
	}
	s.persona = p.Clone()
	s.lastActive = now
	return nil
}

// ConfirmPersona ends diagnosis. There is no way back.
func (s *Session) ConfirmPersona(cat *models.Catalog, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatting {
		return fmt.Errorf("%w: session %s is already chatting", ErrPersonaLocked, s.ID)
	}
	if err := s.persona.Validate(cat); err != nil {
		return err
	}
	s.chatting = true
	s.lastActive = now
	return nil
}

// Turns returns a copy of the history.
func (s *Session) Turns() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// LastSelection returns a copy of the most recent selection, or nil.
func (s *Session) LastSelection() *models.SelectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSelection == nil {
		return nil
	}
	sel := *s.lastSelection
	return &sel
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// turnStart is what a turn needs from the session once it has been admitted.
type turnStart struct {
	persona models.Persona
	history []models.Turn
	first   bool
}

// begin is the single-flight gate: checking and setting the processing flag
// and appending the user turn happen under one lock. accepted is false when
// another turn is already in flight.
func (s *Session) begin(text string, now time.Time) (start turnStart, accepted bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.chatting {
		return turnStart{}, false, fmt.Errorf("%w: session %s is in diagnosis", ErrSessionNotChatting, s.ID)
	}
	if s.processing {
		return turnStart{}, false, nil
	}

	s.processing = true
	s.lastActive = now
	s.turns = append(s.turns, models.Turn{Role: models.RoleUser, Text: text, CreatedAt: now})

	history := make([]models.Turn, len(s.turns))
	copy(history, s.turns)
	return turnStart{
		persona: s.persona.Clone(),
		history: history,
		first:   len(s.turns) == 1,
	}, true, nil
}

// complete appends the assistant turn, stores the selection when there is one
// and clears the processing flag.
func (s *Session) complete(reply models.Turn, sel *models.SelectionResult, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply.Role = models.RoleAssistant
	reply.CreatedAt = now
	s.turns = append(s.turns, reply)
	if sel != nil {
		s.lastSelection = sel
	}
	s.processing = false
	s.lastActive = now
}

// View is a read-only copy of the session for API responses.
type View struct {
	ID              string                  `json:"id"`
	State           State                   `json:"state"`
	Persona         models.Persona          `json:"persona"`
	Turns           []models.Turn           `json:"turns"`
	LastSelection   *models.SelectionResult `json:"lastSelection,omitempty"`
	ComparisonTable []models.ComparisonRow  `json:"comparisonTable,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	LastActiveAt    time.Time               `json:"lastActiveAt"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := make([]models.Turn, len(s.turns))
	copy(turns, s.turns)
	v := View{
		ID:           s.ID,
		State:        s.stateLocked(),
		Persona:      s.persona.Clone(),
		Turns:        turns,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.lastActive,
	}
	if s.lastSelection != nil {
		sel := *s.lastSelection
		v.LastSelection = &sel
		v.ComparisonTable = sel.ComparisonTable()
	}
	return v
}
