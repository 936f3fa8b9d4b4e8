package db

import (
	"database/sql"
	"fmt"

	"github.com/vpnda/potpilot/pkg/models"
)

func (db *DB) createPendingApprovalsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS pending_approvals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		token_expiry TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	)
	`

	if _, err := db.Exec(db.ddl(query)); err != nil {
		return fmt.Errorf("failed to create pending_approvals table: %w", err)
	}
	return nil
}

// SavePendingApproval stores the tokens of a connection awaiting approval
func (db *DB) SavePendingApproval(p *models.PendingApproval) error {
	accessToken, err := db.seal(p.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}
	refreshToken, err := db.seal(p.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}

	_, err = db.exec(
		`INSERT INTO pending_approvals (id, user_id, access_token, refresh_token, token_expiry, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, accessToken, refreshToken, ts(p.TokenExpiry), ts(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending approval: %w", err)
	}
	return nil
}

// GetPendingApproval retrieves a pending approval by id
func (db *DB) GetPendingApproval(id string) (*models.PendingApproval, error) {
	var p models.PendingApproval
	var accessToken, refreshToken string
	err := db.queryRow(
		`SELECT id, user_id, access_token, refresh_token, token_expiry, created_at
		FROM pending_approvals WHERE id = ? LIMIT 1`,
		id,
	).Scan(&p.ID, &p.UserID, &accessToken, &refreshToken, &p.TokenExpiry, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get pending approval: %w", err)
	}

	if p.AccessToken, err = db.unseal(accessToken); err != nil {
		return nil, fmt.Errorf("failed to unseal access token: %w", err)
	}
	if p.RefreshToken, err = db.unseal(refreshToken); err != nil {
		return nil, fmt.Errorf("failed to unseal refresh token: %w", err)
	}
	return &p, nil
}

// RemovePendingApproval deletes a pending approval. Removing a row that is
// already gone is not an error.
func (db *DB) RemovePendingApproval(id string) error {
	if _, err := db.exec(`DELETE FROM pending_approvals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove pending approval: %w", err)
	}
	return nil
}
