package postgres

import (
	"context"
	"fmt"

	"shiftplane/internal/store"
)

func (s *Store) ListShiftRefs(ctx context.Context, unitID int64) ([]store.ShiftRef, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT shift_pattern_id, name FROM shift_patterns WHERE unit_id = $1 ORDER BY shift_pattern_id", unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift patterns for unit %d: %w", unitID, err)
	}
	defer rows.Close()

	var refs []store.ShiftRef
	for rows.Next() {
		var ref store.ShiftRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *Store) ListStaffRefs(ctx context.Context, unitID int64) ([]store.StaffRef, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT staff_id, code, full_name FROM staffs WHERE unit_id = $1 ORDER BY staff_id", unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to load staff for unit %d: %w", unitID, err)
	}
	defer rows.Close()

	var refs []store.StaffRef
	for rows.Next() {
		var ref store.StaffRef
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.FullName); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// upsertBatch executes query once per item inside a single transaction.
// Any failure rolls back the whole batch.
func (s *Store) upsertBatch(ctx context.Context, query string, n int, args func(i int) []interface{}) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for i := 0; i < n; i++ {
		if _, err := tx.ExecContext(ctx, query, args(i)...); err != nil {
			return 0, fmt.Errorf("batch item %d: %w", i, invalidReference(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) UpsertCoverage(ctx context.Context, unitID int64, items []store.CoverageRequirement) (int, error) {
	query := `
		INSERT INTO coverage_requirement (unit_id, day, shift_id, required_count, required_skill)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (unit_id, day, shift_id)
		DO UPDATE SET required_count = EXCLUDED.required_count, required_skill = EXCLUDED.required_skill
	`
	return s.upsertBatch(ctx, query, len(items), func(i int) []interface{} {
		it := items[i]
		var skill interface{}
		if len(it.RequiredSkill) > 0 {
			skill = []byte(it.RequiredSkill)
		}
		return []interface{}{unitID, it.Day, it.ShiftID, it.RequiredCount, skill}
	})
}

func (s *Store) ListCoverage(ctx context.Context, unitID int64) ([]store.CoverageRequirement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT coverage_id, unit_id, day, shift_id, required_count, required_skill
		FROM coverage_requirement
		WHERE unit_id = $1
		ORDER BY day, shift_id
	`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	coverage := []store.CoverageRequirement{}
	for rows.Next() {
		var c store.CoverageRequirement
		var skill []byte
		if err := rows.Scan(&c.ID, &c.UnitID, &c.Day, &c.ShiftID, &c.RequiredCount, &skill); err != nil {
			return nil, err
		}
		if len(skill) > 0 {
			c.RequiredSkill = skill
		}
		coverage = append(coverage, c)
	}
	return coverage, rows.Err()
}

func (s *Store) UpsertAvailability(ctx context.Context, items []store.Availability) (int, error) {
	query := `
		INSERT INTO availability (staff_id, day, shift_id, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (staff_id, day, shift_id)
		DO UPDATE SET value = EXCLUDED.value
	`
	return s.upsertBatch(ctx, query, len(items), func(i int) []interface{} {
		it := items[i]
		return []interface{}{it.StaffID, it.Day, it.ShiftID, it.Value}
	})
}

func (s *Store) UpsertPreferences(ctx context.Context, items []store.Preference) (int, error) {
	query := `
		INSERT INTO preferences (staff_id, day, shift_id, penalty)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (staff_id, day, shift_id)
		DO UPDATE SET penalty = EXCLUDED.penalty
	`
	return s.upsertBatch(ctx, query, len(items), func(i int) []interface{} {
		it := items[i]
		return []interface{}{it.StaffID, it.Day, it.ShiftID, it.Penalty}
	})
}
