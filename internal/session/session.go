// Package session keeps per-user conversational state for multi-step
// flows: directory navigation, catalog browsing, transfer target
// selection and the post-rating comment prompt. State is keyed by the
// user's id so concurrent conversations never share it.
package session

import "sync"

// Stage is the position of a user inside a multi-step flow.
type Stage string

const (
	StageIdle            Stage = "idle"
	StagePickingCity     Stage = "picking_city"
	StagePickingStreet   Stage = "picking_street"
	StageBrowsingCatalog Stage = "browsing_catalog"
	StageTransferring    Stage = "transferring"
	StageAwaitingComment Stage = "awaiting_comment"
)

// State carries the stage plus whatever ids the flow has collected so
// far. FocusClientID is the chat a manager with several active chats
// is currently replying to.
type State struct {
	Stage         Stage
	CityID        int64
	FocusClientID int64
}

type Store struct {
	mu     sync.RWMutex
	states map[int64]State
}

func NewStore() *Store {
	return &Store{states: make(map[int64]State)}
}

// Get returns the user's state, defaulting to an idle one.
func (s *Store) Get(userID int64) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[userID]
	if !ok {
		return State{Stage: StageIdle}
	}
	return state
}

func (s *Store) Set(userID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[userID] = state
}

// SetStage updates the stage keeping collected ids.
func (s *Store) SetStage(userID int64, stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.states[userID]
	state.Stage = stage
	s.states[userID] = state
}

// Focus remembers which client a manager is currently replying to.
func (s *Store) Focus(userID, clientID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.states[userID]
	state.FocusClientID = clientID
	s.states[userID] = state
}

// Clear resets the user to idle, dropping collected ids but keeping
// nothing else around.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, userID)
}
