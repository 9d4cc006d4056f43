// Package resolver maps the human-readable shift and staff identifiers a
// solver emits onto the numeric keys stored for a unit.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"shiftplane/internal/store"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Kind names the identifier namespace a token was looked up in.
type Kind string

const (
	KindShift Kind = "shift"
	KindStaff Kind = "staff"
)

// UnresolvedError reports a solver token with no matching entity.
type UnresolvedError struct {
	Kind  Kind
	Token string
}

func (e *UnresolvedError) Error() string {
	if e.Kind == KindShift {
		return fmt.Sprintf("unknown shift name from solver: '%s'", e.Token)
	}
	return fmt.Sprintf("unknown nurse identifier from solver: '%s'", e.Token)
}

// Collision records a normalized key claimed by more than one entity.
// The entity loaded last wins.
type Collision struct {
	Kind   Kind
	Key    string
	Winner int64
	Loser  int64
}

func (c Collision) String() string {
	return fmt.Sprintf("%s key %q maps to %d (shadowing %d)", c.Kind, c.Key, c.Winner, c.Loser)
}

// Lookup loads the reference data of a unit.
type Lookup interface {
	ListShiftRefs(ctx context.Context, unitID int64) ([]store.ShiftRef, error)
	ListStaffRefs(ctx context.Context, unitID int64) ([]store.StaffRef, error)
}

// Resolver holds normalized lookup tables for one unit. Safe for concurrent reads.
type Resolver struct {
	shifts     map[string]int64
	staff      map[string]int64
	collisions []Collision
}

// Normalize is the lookup key of an identifier: NFC, trimmed, case folded.
func Normalize(s string) string {
	// Casers are stateful, so one per call.
	return cases.Fold().String(strings.TrimSpace(norm.NFC.String(s)))
}

// Build loads shift patterns and staff of a unit into a Resolver.
func Build(ctx context.Context, l Lookup, unitID int64) (*Resolver, error) {
	shifts, err := l.ListShiftRefs(ctx, unitID)
	if err != nil {
		return nil, err
	}
	staff, err := l.ListStaffRefs(ctx, unitID)
	if err != nil {
		return nil, err
	}
	return New(shifts, staff), nil
}

// New builds a Resolver from already loaded reference data.
func New(shifts []store.ShiftRef, staff []store.StaffRef) *Resolver {
	r := &Resolver{
		shifts: make(map[string]int64, len(shifts)),
		staff:  make(map[string]int64, 2*len(staff)),
	}
	for _, s := range shifts {
		r.put(KindShift, r.shifts, s.Name, s.ID)
	}
	for _, s := range staff {
		if s.Code != nil {
			r.put(KindStaff, r.staff, *s.Code, s.ID)
		}
		r.put(KindStaff, r.staff, s.FullName, s.ID)
	}
	return r
}

func (r *Resolver) put(kind Kind, m map[string]int64, raw string, id int64) {
	key := Normalize(raw)
	if key == "" {
		return
	}
	if prev, ok := m[key]; ok && prev != id {
		r.collisions = append(r.collisions, Collision{Kind: kind, Key: key, Winner: id, Loser: prev})
	}
	m[key] = id
}

// Shift resolves a shift name.
func (r *Resolver) Shift(token string) (int64, error) {
	if id, ok := r.shifts[Normalize(token)]; ok {
		return id, nil
	}
	return 0, &UnresolvedError{Kind: KindShift, Token: token}
}

// Staff resolves a staff code or full name.
func (r *Resolver) Staff(token string) (int64, error) {
	if id, ok := r.staff[Normalize(token)]; ok {
		return id, nil
	}
	return 0, &UnresolvedError{Kind: KindStaff, Token: token}
}

// Collisions returns the ambiguous keys found while building.
func (r *Resolver) Collisions() []Collision {
	return r.collisions
}
