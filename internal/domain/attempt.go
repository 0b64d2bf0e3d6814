package domain

import (
	"fmt"
	"time"
)

// AttemptState is the state of one checkout attempt.
type AttemptState string

// Checkout attempt states.
const (
	AttemptIdle          AttemptState = "idle"
	AttemptResolving     AttemptState = "resolving"
	AttemptCodeReady     AttemptState = "code_ready"
	AttemptBuildingOrder AttemptState = "building_order"
	AttemptOrderCreated  AttemptState = "order_created"
	AttemptCartCleared   AttemptState = "cart_cleared"
	AttemptNavigated     AttemptState = "navigated"
	AttemptFailed        AttemptState = "failed"
)

// attemptTransitions lists the allowed next states. order_created may skip
// cart_cleared: a failed cart clear does not undo the order.
var attemptTransitions = map[AttemptState][]AttemptState{
	AttemptIdle:          {AttemptResolving},
	AttemptResolving:     {AttemptCodeReady, AttemptBuildingOrder, AttemptFailed, AttemptIdle},
	AttemptCodeReady:     {AttemptNavigated, AttemptFailed},
	AttemptBuildingOrder: {AttemptOrderCreated, AttemptFailed},
	AttemptOrderCreated:  {AttemptCartCleared, AttemptNavigated},
	AttemptCartCleared:   {AttemptNavigated},
	AttemptFailed:        {AttemptIdle},
}

// CanTransition reports whether from -> to is allowed.
func (s AttemptState) CanTransition(to AttemptState) bool {
	for _, next := range attemptTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt has finished.
func (s AttemptState) IsTerminal() bool {
	return s == AttemptNavigated || s == AttemptFailed
}

// Attempt tracks one checkout attempt from trigger to navigation.
type Attempt struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	State     AttemptState   `json:"state"`
	History   []AttemptState `json:"history"`
	StartedAt time.Time      `json:"started_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewAttempt creates an attempt in the idle state.
func NewAttempt(id, sessionID string) *Attempt {
	now := time.Now().UTC()
	return &Attempt{
		ID:        id,
		SessionID: sessionID,
		State:     AttemptIdle,
		History:   []AttemptState{AttemptIdle},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the attempt to state to.
func (a *Attempt) Transition(to AttemptState) error {
	if !a.State.CanTransition(to) {
		return fmt.Errorf("invalid attempt transition %s -> %s", a.State, to)
	}
	a.State = to
	a.History = append(a.History, to)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail moves the attempt to failed and then back to idle so a new attempt
// can start.
func (a *Attempt) Fail() {
	if a.State != AttemptFailed {
		a.State = AttemptFailed
		a.History = append(a.History, AttemptFailed)
	}
	_ = a.Transition(AttemptIdle)
}
