package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"shiftplane/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestListShiftRefs(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT shift_pattern_id, name FROM shift_patterns WHERE unit_id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"shift_pattern_id", "name"}).
			AddRow(int64(1), "Morning").
			AddRow(int64(2), "Night"))

	refs, err := s.ListShiftRefs(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListShiftRefs failed: %v", err)
	}
	if len(refs) != 2 || refs[1].Name != "Night" {
		t.Errorf("unexpected refs: %+v", refs)
	}
}

func TestListStaffRefs_NullCode(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT staff_id, code, full_name FROM staffs WHERE unit_id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"staff_id", "code", "full_name"}).
			AddRow(int64(10), "N001", "Alice Smith").
			AddRow(int64(11), nil, "Bob Jones"))

	refs, err := s.ListStaffRefs(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListStaffRefs failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].Code == nil || *refs[0].Code != "N001" {
		t.Errorf("unexpected code %v", refs[0].Code)
	}
	if refs[1].Code != nil {
		t.Errorf("expected nil code, got %v", *refs[1].Code)
	}
}

func TestUpsertCoverage_Batch(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	items := []store.CoverageRequirement{
		{Day: day, ShiftID: 1, RequiredCount: 3},
		{Day: day, ShiftID: 2, RequiredCount: 2, RequiredSkill: []byte(`{"senior":1}`)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO coverage_requirement .* ON CONFLICT \(unit_id, day, shift_id\)`).
		WithArgs(int64(3), day, int64(1), 3, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO coverage_requirement`).
		WithArgs(int64(3), day, int64(2), 2, []byte(`{"senior":1}`)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	n, err := s.UpsertCoverage(context.Background(), 3, items)
	if err != nil {
		t.Fatalf("UpsertCoverage failed: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d, want 2", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpsertAvailability_RollsBackWholeBatch(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	items := []store.Availability{
		{StaffID: 10, Day: day, ShiftID: 1, Value: 1},
		{StaffID: 999, Day: day, ShiftID: 1, Value: 0},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO availability .* ON CONFLICT \(staff_id, day, shift_id\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO availability`).
		WillReturnError(errors.New("violates foreign key constraint"))
	mock.ExpectRollback()

	if _, err := s.UpsertAvailability(context.Background(), items); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpsertPreferences(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	day := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO preferences .* DO UPDATE SET penalty = EXCLUDED.penalty`).
		WithArgs(int64(10), day, int64(2), 5).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n, err := s.UpsertPreferences(context.Background(), []store.Preference{{StaffID: 10, Day: day, ShiftID: 2, Penalty: 5}})
	if err != nil {
		t.Fatalf("UpsertPreferences failed: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d, want 1", n)
	}
}

func TestListCoverage(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT .* FROM coverage_requirement WHERE unit_id = \$1 ORDER BY day, shift_id`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"coverage_id", "unit_id", "day", "shift_id", "required_count", "required_skill"}).
			AddRow(int64(1), int64(3), day, int64(1), 3, nil).
			AddRow(int64(2), int64(3), day, int64(2), 2, []byte(`{"senior":1}`)))

	list, err := s.ListCoverage(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListCoverage failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(list))
	}
	if list[0].RequiredSkill != nil {
		t.Errorf("expected nil skill, got %s", list[0].RequiredSkill)
	}
	if string(list[1].RequiredSkill) != `{"senior":1}` {
		t.Errorf("unexpected skill %s", list[1].RequiredSkill)
	}
}
