package db

import (
	"database/sql"
	"fmt"

	"github.com/vpnda/potpilot/pkg/models"
)

func (db *DB) createPotsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS pots (
		id TEXT PRIMARY KEY,
		linked_account_id TEXT NOT NULL,
		pot_id TEXT NOT NULL UNIQUE,
		pot_name TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0,
		last_synced TIMESTAMP
	)
	`

	if _, err := db.Exec(db.ddl(query)); err != nil {
		return fmt.Errorf("failed to create pots table: %w", err)
	}
	return nil
}

const potColumns = `id, linked_account_id, pot_id, pot_name, balance, last_synced`

func scanPot(row rowScanner) (*models.Pot, error) {
	var pot models.Pot
	var lastSynced sql.NullTime
	if err := row.Scan(&pot.ID, &pot.LinkedAccountID, &pot.ProviderPotID, &pot.Name, &pot.Balance, &lastSynced); err != nil {
		return nil, err
	}
	pot.LastSynced = fromNullTS(lastSynced)
	return &pot, nil
}

// UpsertPot inserts or updates a pot keyed by the provider pot id and
// returns its row id
func (db *DB) UpsertPot(pot *models.Pot) (string, error) {
	query := `
	INSERT INTO pots (` + potColumns + `)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(pot_id) DO UPDATE SET
		linked_account_id = excluded.linked_account_id,
		pot_name = excluded.pot_name,
		balance = excluded.balance,
		last_synced = excluded.last_synced
	RETURNING id
	`

	var id string
	err := db.queryRow(
		query,
		pot.ID,
		pot.LinkedAccountID,
		pot.ProviderPotID,
		pot.Name,
		pot.Balance,
		nullTS(pot.LastSynced),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert pot: %w", err)
	}
	return id, nil
}

// GetPot retrieves a pot by row id
func (db *DB) GetPot(id string) (*models.Pot, error) {
	pot, err := scanPot(db.queryRow(`SELECT `+potColumns+` FROM pots WHERE id = ? LIMIT 1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get pot: %w", err)
	}
	return pot, nil
}

// GetPots lists the pots of a linked account
func (db *DB) GetPots(linkedAccountID string) ([]*models.Pot, error) {
	rows, err := db.query(`SELECT `+potColumns+` FROM pots WHERE linked_account_id = ? ORDER BY pot_name`, linkedAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pots: %w", err)
	}
	defer rows.Close()

	var pots []*models.Pot
	for rows.Next() {
		pot, err := scanPot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pot: %w", err)
		}
		pots = append(pots, pot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over pots: %w", err)
	}
	return pots, nil
}
