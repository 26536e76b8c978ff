// Package lifecycle holds the status machines of appointments and clinical records.
package lifecycle

import (
	"errors"
	"fmt"
	"slices"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// FSM is a fixed table of allowed status transitions for one entity kind.
type FSM[S ~string] struct {
	entity      string
	transitions map[S][]S
}

func NewFSM[S ~string](entity string, transitions map[S][]S) *FSM[S] {
	return &FSM[S]{entity: entity, transitions: transitions}
}

func (f *FSM[S]) Entity() string { return f.entity }

// CanTransition checks if transition is allowed.
func (f *FSM[S]) CanTransition(from, to S) bool {
	return slices.Contains(f.transitions[from], to)
}

// Transition returns to when the move is allowed and ErrInvalidTransition otherwise.
func (f *FSM[S]) Transition(from, to S) (S, error) {
	if !f.CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, f.entity, from, to)
	}
	return to, nil
}

// Terminal reports whether no transition leaves s.
func (f *FSM[S]) Terminal(s S) bool {
	return len(f.transitions[s]) == 0
}

// Known reports whether s appears in the table.
func (f *FSM[S]) Known(s S) bool {
	if _, ok := f.transitions[s]; ok {
		return true
	}
	for _, targets := range f.transitions {
		if slices.Contains(targets, s) {
			return true
		}
	}
	return false
}
