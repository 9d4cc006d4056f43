package postgres

import (
	"context"
	"fmt"

	"shiftplane/internal/store"
)

const scenarioColumns = "scenario_id, unit_id, source, input_hash, payload, status, created_by, created_at"

func (s *Store) UpsertScenario(ctx context.Context, sc *store.Scenario) error {
	query := `
		INSERT INTO scenarios (unit_id, source, input_hash, payload, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unit_id, input_hash)
		DO UPDATE SET payload = EXCLUDED.payload, status = EXCLUDED.status
		RETURNING ` + scenarioColumns

	err := s.db.QueryRowContext(ctx, query,
		sc.UnitID, sc.Source, sc.InputHash, []byte(sc.Payload), store.ScenarioStatusReady, sc.CreatedBy,
	).Scan(
		&sc.ID, &sc.UnitID, &sc.Source, &sc.InputHash,
		&sc.Payload, &sc.Status, &sc.CreatedBy, &sc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert scenario for unit %d: %w", sc.UnitID, invalidReference(err))
	}
	return nil
}

func (s *Store) GetScenario(ctx context.Context, id int64) (*store.Scenario, error) {
	query := "SELECT " + scenarioColumns + " FROM scenarios WHERE scenario_id = $1"

	var sc store.Scenario
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sc.ID, &sc.UnitID, &sc.Source, &sc.InputHash,
		&sc.Payload, &sc.Status, &sc.CreatedBy, &sc.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &sc, nil
}

func (s *Store) ListScenarios(ctx context.Context, unitID *int64) ([]store.Scenario, error) {
	query := "SELECT " + scenarioColumns + " FROM scenarios"
	var args []interface{}
	if unitID != nil {
		query += " WHERE unit_id = $1"
		args = append(args, *unitID)
	}
	query += " ORDER BY created_at DESC, scenario_id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scenarios := []store.Scenario{}
	for rows.Next() {
		var sc store.Scenario
		if err := rows.Scan(
			&sc.ID, &sc.UnitID, &sc.Source, &sc.InputHash,
			&sc.Payload, &sc.Status, &sc.CreatedBy, &sc.CreatedAt,
		); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

func (s *Store) SetScenarioStatus(ctx context.Context, tx store.DBTransaction, id int64, status store.ScenarioStatus) error {
	res, err := s.getExecutor(tx).ExecContext(ctx,
		"UPDATE scenarios SET status = $1 WHERE scenario_id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to set scenario %d status: %w", id, err)
	}
	return expectRow(res)
}

func (s *Store) DeleteScenario(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM scenarios WHERE scenario_id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
