package resolver

import (
	"context"
	"errors"
	"testing"

	"shiftplane/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type fakeLookup struct {
	shifts   []store.ShiftRef
	staff    []store.StaffRef
	shiftErr error
}

func (f *fakeLookup) ListShiftRefs(ctx context.Context, unitID int64) ([]store.ShiftRef, error) {
	return f.shifts, f.shiftErr
}

func (f *fakeLookup) ListStaffRefs(ctx context.Context, unitID int64) ([]store.StaffRef, error) {
	return f.staff, nil
}

func ward() *fakeLookup {
	return &fakeLookup{
		shifts: []store.ShiftRef{{ID: 1, Name: "Morning"}, {ID: 2, Name: "Night"}},
		staff: []store.StaffRef{
			{ID: 10, Code: strPtr("N001"), FullName: "Alice Smith"},
			{ID: 11, FullName: "Bob Jones"},
		},
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "morning", Normalize("  MORNING\t"))
	assert.Equal(t, Normalize("Renée"), Normalize("RENÉE"))
	assert.Equal(t, "", Normalize("   "))
}

func TestResolveIsCaseAndWhitespaceInsensitive(t *testing.T) {
	r, err := Build(context.Background(), ward(), 1)
	require.NoError(t, err)

	id, err := r.Shift("  morning ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	id, err = r.Shift("NIGHT")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	id, err = r.Staff("n001")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	id, err = r.Staff("alice smith")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	id, err = r.Staff(" Bob Jones")
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
}

func TestResolveUnknownNamesToken(t *testing.T) {
	r := New(ward().shifts, ward().staff)

	_, err := r.Shift("Evening")
	var unresolved *UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, KindShift, unresolved.Kind)
	assert.Equal(t, "Evening", unresolved.Token)
	assert.Contains(t, err.Error(), "'Evening'")

	_, err = r.Staff("N999")
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, KindStaff, unresolved.Kind)
	assert.Equal(t, "unknown nurse identifier from solver: 'N999'", err.Error())
}

func TestCollisionsAreReported(t *testing.T) {
	r := New(
		[]store.ShiftRef{{ID: 1, Name: "Day"}, {ID: 3, Name: " day "}},
		[]store.StaffRef{
			{ID: 10, Code: strPtr("AS"), FullName: "Alice Smith"},
			// Another nurse whose code equals the first one's full name.
			{ID: 12, Code: strPtr("alice smith"), FullName: "Ann Sato"},
		},
	)

	id, err := r.Shift("DAY")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id, "last loaded entity wins")

	id, err = r.Staff("Alice Smith")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	collisions := r.Collisions()
	require.Len(t, collisions, 2)
	assert.Equal(t, KindShift, collisions[0].Kind)
	assert.Equal(t, "day", collisions[0].Key)
	assert.Equal(t, int64(1), collisions[0].Loser)
	assert.Equal(t, KindStaff, collisions[1].Kind)
}

func TestSameEntityIsNotACollision(t *testing.T) {
	r := New(nil, []store.StaffRef{{ID: 10, Code: strPtr("alice"), FullName: "Alice"}})
	assert.Empty(t, r.Collisions())
}

func TestBuildPropagatesLookupErrors(t *testing.T) {
	l := ward()
	l.shiftErr = errors.New("connection refused")
	_, err := Build(context.Background(), l, 1)
	assert.Error(t, err)
}
