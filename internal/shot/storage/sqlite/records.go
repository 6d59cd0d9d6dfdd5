package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/banshee-data/shotcall/internal/shot"
)

// withTx runs fn in a transaction, retrying the whole transaction on
// SQLITE_BUSY.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// InsertRecords persists the per-angle records of a run.
func (s *Store) InsertRecords(runID string, records []*shot.ShotRecord) error {
	return s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO shot_records (
				run_id, record_id, angle, timestamp_seconds, start_frame, end_frame,
				outcome, outcome_reason, confidence, record_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare record insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range records {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("marshal record %s: %w", r.ID, err)
			}
			if _, err := stmt.Exec(
				runID, r.ID, string(r.Angle), r.TimestampSeconds, r.StartFrame, r.EndFrame,
				string(r.Outcome), r.OutcomeReason, r.Confidence, string(data),
			); err != nil {
				return fmt.Errorf("insert record %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// ListRecords returns the records of a run ordered by timestamp, then angle.
func (s *Store) ListRecords(runID string) ([]*shot.ShotRecord, error) {
	rows, err := s.db.Query(`
		SELECT record_json FROM shot_records
		WHERE run_id = ?
		ORDER BY timestamp_seconds, angle, record_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*shot.ShotRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var r shot.ShotRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

func recordID(r *shot.ShotRecord) interface{} {
	if r == nil {
		return nil
	}
	return r.ID
}

// InsertFused persists the fused verdicts of a run. The records they refer
// to are stored separately with InsertRecords.
func (s *Store) InsertFused(runID string, fused []shot.FusedShot) error {
	return s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO fused_shots (
				run_id, fused_id, timestamp_seconds, outcome, fusion_method, fusion_confidence,
				near_record_id, far_record_id, outcome_agreement, time_diff, shot_pattern,
				scores_json, evidence_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare fused insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range fused {
			var scores, evidence []byte
			if len(f.Scores) > 0 {
				if scores, err = json.Marshal(f.Scores); err != nil {
					return fmt.Errorf("marshal scores %s: %w", f.ID, err)
				}
			}
			if len(f.Evidence) > 0 {
				if evidence, err = json.Marshal(f.Evidence); err != nil {
					return fmt.Errorf("marshal evidence %s: %w", f.ID, err)
				}
			}
			if _, err := stmt.Exec(
				runID, f.ID, f.TimestampSeconds, string(f.Outcome), string(f.FusionMethod), f.FusionConfidence,
				recordID(f.NearRecord), recordID(f.FarRecord), f.OutcomeAgreement, f.TimeDiff, string(f.Pattern),
				nullableJSON(scores), nullableJSON(evidence),
			); err != nil {
				return fmt.Errorf("insert fused %s: %w", f.ID, err)
			}
		}
		return nil
	})
}

// ListFused returns the verdicts of a run ordered by timestamp, with their
// near and far records attached.
func (s *Store) ListFused(runID string) ([]shot.FusedShot, error) {
	records, err := s.ListRecords(runID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*shot.ShotRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	rows, err := s.db.Query(`
		SELECT fused_id, timestamp_seconds, outcome, fusion_method, fusion_confidence,
		       near_record_id, far_record_id, outcome_agreement, time_diff, shot_pattern,
		       scores_json, evidence_json
		FROM fused_shots
		WHERE run_id = ?
		ORDER BY timestamp_seconds, fused_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fused shots: %w", err)
	}
	defer rows.Close()

	var out []shot.FusedShot
	for rows.Next() {
		var f shot.FusedShot
		var outcome, method, pattern string
		var nearID, farID, scores, evidence sql.NullString
		if err := rows.Scan(
			&f.ID, &f.TimestampSeconds, &outcome, &method, &f.FusionConfidence,
			&nearID, &farID, &f.OutcomeAgreement, &f.TimeDiff, &pattern,
			&scores, &evidence,
		); err != nil {
			return nil, fmt.Errorf("scan fused shot: %w", err)
		}
		f.Outcome = shot.Outcome(outcome)
		f.FusionMethod = shot.FusionMethod(method)
		f.Pattern = shot.ShotPattern(pattern)
		if nearID.Valid {
			f.NearRecord = byID[nearID.String]
		}
		if farID.Valid {
			f.FarRecord = byID[farID.String]
		}
		if scores.Valid {
			if err := json.Unmarshal([]byte(scores.String), &f.Scores); err != nil {
				return nil, fmt.Errorf("decode scores %s: %w", f.ID, err)
			}
		}
		if evidence.Valid {
			if err := json.Unmarshal([]byte(evidence.String), &f.Evidence); err != nil {
				return nil, fmt.Errorf("decode evidence %s: %w", f.ID, err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
