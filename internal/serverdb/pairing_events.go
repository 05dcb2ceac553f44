package serverdb

import (
	"fmt"
	"time"
)

// PairingEvent represents a row in the pairing_events table.
type PairingEvent struct {
	ID        int64  `json:"id"`
	CodeID    string `json:"code_id"`
	EventType string `json:"event_type"`
	Metadata  string `json:"metadata"`
	CreatedAt string `json:"created_at"`
}

// Pairing event type constants.
const (
	PairingEventRegistered = "registered"
	PairingEventVerified   = "verified"
	PairingEventRejected   = "rejected"
	PairingEventExpired    = "expired"
)

// InsertPairingEvent inserts a pairing event row.
func (db *ServerDB) InsertPairingEvent(codeID, eventType, metadata string) error {
	if metadata == "" {
		metadata = "{}"
	}
	_, err := db.conn.Exec(
		`INSERT INTO pairing_events (code_id, event_type, metadata, created_at) VALUES (?, ?, ?, ?)`,
		codeID, eventType, metadata, db.now(),
	)
	if err != nil {
		return fmt.Errorf("insert pairing event: %w", err)
	}
	return nil
}

// ListPairingEvents returns events for a code ID, oldest first.
func (db *ServerDB) ListPairingEvents(codeID string) ([]PairingEvent, error) {
	rows, err := db.conn.Query(
		`SELECT id, code_id, event_type, metadata, created_at FROM pairing_events WHERE code_id = ? ORDER BY id`, codeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pairing events: %w", err)
	}
	defer rows.Close()

	var events []PairingEvent
	for rows.Next() {
		var e PairingEvent
		if err := rows.Scan(&e.ID, &e.CodeID, &e.EventType, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pairing event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pairing events: %w", err)
	}
	return events, nil
}

// CleanupPairingEvents deletes pairing events older than the given duration.
// Returns the number of rows deleted.
func (db *ServerDB) CleanupPairingEvents(olderThan time.Duration) (int64, error) {
	cutoff := db.now().Add(-olderThan)
	res, err := db.conn.Exec(`DELETE FROM pairing_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup pairing events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
