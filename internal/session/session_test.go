package session

import "testing"

func TestGetDefaultsToIdle(t *testing.T) {
	s := NewStore()

	state := s.Get(100)
	if state.Stage != StageIdle {
		t.Fatalf("stage=%s, want idle", state.Stage)
	}
}

func TestSetStageKeepsCollectedIDs(t *testing.T) {
	s := NewStore()

	s.Set(100, State{Stage: StagePickingStreet, CityID: 7})
	s.SetStage(100, StagePickingCity)

	state := s.Get(100)
	if state.Stage != StagePickingCity {
		t.Errorf("stage=%s, want picking_city", state.Stage)
	}
	if state.CityID != 7 {
		t.Errorf("city=%d, want 7", state.CityID)
	}
}

func TestFocusIsIndependentPerUser(t *testing.T) {
	s := NewStore()

	s.Focus(1, 100)
	s.Focus(2, 200)

	if got := s.Get(1).FocusClientID; got != 100 {
		t.Errorf("manager 1 focus=%d, want 100", got)
	}
	if got := s.Get(2).FocusClientID; got != 200 {
		t.Errorf("manager 2 focus=%d, want 200", got)
	}
}

func TestClearResets(t *testing.T) {
	s := NewStore()

	s.Set(100, State{Stage: StageAwaitingComment, FocusClientID: 5})
	s.Clear(100)

	state := s.Get(100)
	if state.Stage != StageIdle || state.FocusClientID != 0 {
		t.Errorf("state=%+v after clear, want idle zero state", state)
	}
}
