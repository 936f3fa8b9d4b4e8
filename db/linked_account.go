package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vpnda/potpilot/pkg/models"
)

func (db *DB) createLinkedAccountsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS linked_accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		account_name TEXT NOT NULL,
		account_type TEXT NOT NULL,
		balance BIGINT NOT NULL DEFAULT 0,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		token_expiry TIMESTAMP,
		reconnect_by TIMESTAMP NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_synced TIMESTAMP,
		connected_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, account_id)
	)
	`

	if _, err := db.Exec(db.ddl(query)); err != nil {
		return fmt.Errorf("failed to create linked_accounts table: %w", err)
	}
	return nil
}

const linkedAccountColumns = `
	id, user_id, account_id, account_name, account_type, balance, access_token,
	refresh_token, token_expiry, reconnect_by, is_active, last_synced, connected_at
`

func (db *DB) scanLinkedAccount(row rowScanner) (*models.LinkedAccount, error) {
	var acc models.LinkedAccount
	var tokenExpiry, lastSynced sql.NullTime
	var accessToken, refreshToken string
	err := row.Scan(
		&acc.ID,
		&acc.UserID,
		&acc.ProviderAccountID,
		&acc.Name,
		&acc.Type,
		&acc.Balance,
		&accessToken,
		&refreshToken,
		&tokenExpiry,
		&acc.ReconnectBy,
		&acc.IsActive,
		&lastSynced,
		&acc.ConnectedAt,
	)
	if err != nil {
		return nil, err
	}

	if acc.AccessToken, err = db.unseal(accessToken); err != nil {
		return nil, fmt.Errorf("failed to unseal access token: %w", err)
	}
	if acc.RefreshToken, err = db.unseal(refreshToken); err != nil {
		return nil, fmt.Errorf("failed to unseal refresh token: %w", err)
	}
	acc.TokenExpiry = fromNullTS(tokenExpiry)
	acc.LastSynced = fromNullTS(lastSynced)
	return &acc, nil
}

// UpsertLinkedAccount inserts or refreshes an account keyed by user and
// provider account id. It returns the row id, which is acc.ID only on insert.
func (db *DB) UpsertLinkedAccount(acc *models.LinkedAccount) (string, error) {
	accessToken, err := db.seal(acc.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to seal access token: %w", err)
	}
	refreshToken, err := db.seal(acc.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to seal refresh token: %w", err)
	}

	query := `
	INSERT INTO linked_accounts (` + linkedAccountColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, account_id)
	DO UPDATE SET
		account_name = excluded.account_name,
		account_type = excluded.account_type,
		balance = excluded.balance,
		access_token = excluded.access_token,
		refresh_token = excluded.refresh_token,
		token_expiry = excluded.token_expiry,
		reconnect_by = excluded.reconnect_by,
		is_active = excluded.is_active,
		last_synced = excluded.last_synced
	RETURNING id
	`

	var id string
	err = db.queryRow(
		query,
		acc.ID,
		acc.UserID,
		acc.ProviderAccountID,
		acc.Name,
		acc.Type,
		acc.Balance,
		accessToken,
		refreshToken,
		nullTS(acc.TokenExpiry),
		ts(acc.ReconnectBy),
		acc.IsActive,
		nullTS(acc.LastSynced),
		ts(acc.ConnectedAt),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert linked account: %w", err)
	}
	return id, nil
}

// GetLinkedAccount retrieves a linked account by row id
func (db *DB) GetLinkedAccount(id string) (*models.LinkedAccount, error) {
	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts WHERE id = ? LIMIT 1`

	acc, err := db.scanLinkedAccount(db.queryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get linked account: %w", err)
	}
	return acc, nil
}

// GetLinkedAccounts lists a user's linked accounts, or all of them when userID is empty
func (db *DB) GetLinkedAccounts(userID string) ([]*models.LinkedAccount, error) {
	query := `SELECT ` + linkedAccountColumns + ` FROM linked_accounts`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY connected_at`

	rows, err := db.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get linked accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.LinkedAccount
	for rows.Next() {
		acc, err := db.scanLinkedAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan linked account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over linked accounts: %w", err)
	}
	return accounts, nil
}

// UpdateCredentials stores refreshed OAuth credentials for an account
func (db *DB) UpdateCredentials(id, accessToken, refreshToken string, expiry time.Time) error {
	sealedAccess, err := db.seal(accessToken)
	if err != nil {
		return fmt.Errorf("failed to seal access token: %w", err)
	}
	sealedRefresh, err := db.seal(refreshToken)
	if err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}

	result, err := db.exec(
		`UPDATE linked_accounts SET access_token = ?, refresh_token = ?, token_expiry = ? WHERE id = ?`,
		sealedAccess, sealedRefresh, ts(expiry), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	return expectOneRow(result, "linked account", id)
}

// UpdateAccountBalance caches the balance last read from the provider
func (db *DB) UpdateAccountBalance(id string, balance models.Pence, syncedAt time.Time) error {
	result, err := db.exec(
		`UPDATE linked_accounts SET balance = ?, last_synced = ? WHERE id = ?`,
		balance, ts(syncedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	return expectOneRow(result, "linked account", id)
}
