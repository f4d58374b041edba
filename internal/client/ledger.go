package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// LedgerEntry records that a device item has reached the server
type LedgerEntry struct {
	DeviceID      string
	ServerPhotoID string
	Filename      string
	UploadedAt    time.Time
}

// Ledger maps device item ids to server photo ids. It is a cache: losing it
// only costs re-uploads, which the server deduplicates.
type Ledger struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewLedger creates a ledger on a database opened with OpenState
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// MarkUploaded records deviceID as uploaded; the latest call wins
func (l *Ledger) MarkUploaded(ctx context.Context, deviceID, serverPhotoID, filename string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, upsertLedgerSQL, deviceID, serverPhotoID, filename, toMillis(l.now()))
	if err != nil {
		return fmt.Errorf("mark %s uploaded: %w", deviceID, err)
	}
	return nil
}

// BulkMarkUploaded records entries in one transaction
func (l *Ledger) BulkMarkUploaded(ctx context.Context, entries []LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertLedgerSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := l.now()
	for _, e := range entries {
		at := e.UploadedAt
		if at.IsZero() {
			at = now
		}
		if _, err := stmt.ExecContext(ctx, e.DeviceID, e.ServerPhotoID, e.Filename, toMillis(at)); err != nil {
			return fmt.Errorf("mark %s uploaded: %w", e.DeviceID, err)
		}
	}
	return tx.Commit()
}

// IsUploaded reports whether deviceID has a ledger entry
func (l *Ledger) IsUploaded(ctx context.Context, deviceID string) (bool, error) {
	entry, err := l.Get(ctx, deviceID)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Get returns the entry for deviceID, or nil when there is none
func (l *Ledger) Get(ctx context.Context, deviceID string) (*LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var e LedgerEntry
	var uploadedAt int64
	err := l.db.QueryRowContext(ctx,
		`SELECT device_id, server_photo_id, filename, uploaded_at FROM ledger_entries WHERE device_id = ?`,
		deviceID,
	).Scan(&e.DeviceID, &e.ServerPhotoID, &e.Filename, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.UploadedAt = fromMillis(uploadedAt)
	return &e, nil
}

// CountUploaded returns how many of deviceIDs have a ledger entry
func (l *Ledger) CountUploaded(ctx context.Context, deviceIDs []string) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for start := 0; start < len(deviceIDs); start += ledgerLookupChunk {
		end := min(start+ledgerLookupChunk, len(deviceIDs))
		chunk := deviceIDs[start:end]

		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := `SELECT COUNT(*) FROM ledger_entries WHERE device_id IN (?` +
			strings.Repeat(", ?", len(chunk)-1) + `)`

		var n int
		if err := l.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count uploaded: %w", err)
		}
		total += n
	}
	return total, nil
}

// Remove forgets deviceID
func (l *Ledger) Remove(ctx context.Context, deviceID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE device_id = ?`, deviceID)
	return err
}

// Count returns the number of entries
func (l *Ledger) Count(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&n)
	return n, err
}

// Clear drops every entry
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `DELETE FROM ledger_entries`)
	return err
}

// ledgerLookupChunk stays below SQLite's bound parameter limit
const ledgerLookupChunk = 500

const upsertLedgerSQL = `
	INSERT INTO ledger_entries (device_id, server_photo_id, filename, uploaded_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(device_id) DO UPDATE SET
		server_photo_id = excluded.server_photo_id,
		filename = excluded.filename,
		uploaded_at = excluded.uploaded_at
`
