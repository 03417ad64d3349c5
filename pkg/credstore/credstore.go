// Package credstore is a generic key-value store for linked external account
// credentials.
//
// The management console links external accounts (e.g. an object storage
// tenant) and stores their secrets here; the worker reads them when building
// a blob store for a job. The table lives in the same database as the job
// store, created by jobstore.Migrate.
package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates no credential exists for the (account, name) pair.
var ErrNotFound = errors.New("credential not found")

// Put inserts or replaces one credential value for a linked account.
func Put(ctx context.Context, db *sql.DB, account, name, value string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(account) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("account and name are required")
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO credentials (account, name, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(account, name) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		account, name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

// Get returns one credential value.
func Get(ctx context.Context, db *sql.DB, account, name string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE account = ? AND name = ?`,
		account, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s/%s: %w", account, name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get credential: %w", err)
	}
	return value, nil
}

// GetAll returns every credential for an account as a name->value map.
// A linked account with no credentials yields an empty map, not an error.
func GetAll(ctx context.Context, db *sql.DB, account string) (map[string]string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name, value FROM credentials WHERE account = ?`, account)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out[name] = value
	}
	return out, rows.Err()
}

// Delete removes every credential for an account. Unlinking an account that
// was never linked is not an error.
func Delete(ctx context.Context, db *sql.DB, account string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := db.ExecContext(ctx, `DELETE FROM credentials WHERE account = ?`, account)
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
