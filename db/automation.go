package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vpnda/potpilot/pkg/models"
)

func (db *DB) createAutomationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS automations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		source_credit_card_id TEXT,
		destination_pot_id TEXT NOT NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		frequency TEXT NOT NULL CHECK (frequency IN ('weekly', 'monthly')),
		day_of_week INTEGER,
		day_of_month INTEGER,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		next_run_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)
	`

	if _, err := db.Exec(db.ddl(query)); err != nil {
		return fmt.Errorf("failed to create automations table: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS automations_due_idx ON automations (is_active, next_run_at)`); err != nil {
		return fmt.Errorf("failed to create automations index: %w", err)
	}
	return nil
}

const automationColumns = `
	id, user_id, name, source_credit_card_id, destination_pot_id, amount,
	frequency, day_of_week, day_of_month, is_active, next_run_at, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAutomation(row rowScanner) (*models.Automation, error) {
	var a models.Automation
	var nextRunAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.SourceCreditCardID,
		&a.DestinationPotID,
		&a.Amount,
		&a.Frequency,
		&a.DayOfWeek,
		&a.DayOfMonth,
		&a.IsActive,
		&nextRunAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.NextRunAt = fromNullTS(nextRunAt)
	return &a, nil
}

func (db *DB) queryAutomations(query string, args ...any) ([]*models.Automation, error) {
	rows, err := db.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query automations: %w", err)
	}
	defer rows.Close()

	var automations []*models.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan automation: %w", err)
		}
		automations = append(automations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automations: %w", err)
	}
	return automations, nil
}

// SaveAutomation inserts a new automation
func (db *DB) SaveAutomation(a *models.Automation) error {
	query := `
	INSERT INTO automations (` + automationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.exec(
		query,
		a.ID,
		a.UserID,
		a.Name,
		a.SourceCreditCardID,
		a.DestinationPotID,
		a.Amount,
		a.Frequency,
		a.DayOfWeek,
		a.DayOfMonth,
		a.IsActive,
		nullTS(a.NextRunAt),
		ts(a.CreatedAt),
		ts(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save automation: %w", err)
	}
	return nil
}

// GetAutomation retrieves an automation by id
func (db *DB) GetAutomation(id string) (*models.Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = ? LIMIT 1`

	a, err := scanAutomation(db.queryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get automation: %w", err)
	}
	return a, nil
}

// GetAutomations lists a user's automations, or every automation when userID is empty
func (db *DB) GetAutomations(userID string) ([]*models.Automation, error) {
	if userID == "" {
		return db.queryAutomations(`SELECT ` + automationColumns + ` FROM automations ORDER BY created_at`)
	}
	return db.queryAutomations(`SELECT `+automationColumns+` FROM automations WHERE user_id = ? ORDER BY created_at`, userID)
}

// GetDueAutomations lists active automations whose next run is at or before now
func (db *DB) GetDueAutomations(now time.Time) ([]*models.Automation, error) {
	query := `
	SELECT ` + automationColumns + `
	FROM automations
	WHERE is_active = TRUE AND next_run_at IS NOT NULL AND next_run_at <= ?
	ORDER BY next_run_at
	`
	return db.queryAutomations(query, ts(now))
}

// GetUnscheduledAutomations lists active automations that were never scheduled
func (db *DB) GetUnscheduledAutomations() ([]*models.Automation, error) {
	query := `
	SELECT ` + automationColumns + `
	FROM automations
	WHERE is_active = TRUE AND next_run_at IS NULL
	ORDER BY created_at
	`
	return db.queryAutomations(query)
}

// UpdateNextRunAt reschedules an automation
func (db *DB) UpdateNextRunAt(id string, nextRunAt, updatedAt time.Time) error {
	result, err := db.exec(
		`UPDATE automations SET next_run_at = ?, updated_at = ? WHERE id = ?`,
		ts(nextRunAt), ts(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update next run: %w", err)
	}
	return expectOneRow(result, "automation", id)
}

// SetAutomationActive pauses or resumes an automation. A nil nextRunAt
// leaves the stored schedule untouched.
func (db *DB) SetAutomationActive(id string, active bool, nextRunAt *time.Time, updatedAt time.Time) error {
	query := `UPDATE automations SET is_active = ?, updated_at = ? WHERE id = ?`
	args := []any{active, ts(updatedAt), id}
	if nextRunAt != nil {
		query = `UPDATE automations SET is_active = ?, updated_at = ?, next_run_at = ? WHERE id = ?`
		args = []any{active, ts(updatedAt), ts(*nextRunAt), id}
	}

	result, err := db.exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update automation: %w", err)
	}
	return expectOneRow(result, "automation", id)
}

// RemoveAutomation deletes an automation by id
func (db *DB) RemoveAutomation(id string) error {
	result, err := db.exec(`DELETE FROM automations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove automation: %w", err)
	}
	return expectOneRow(result, "automation", id)
}
