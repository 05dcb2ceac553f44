package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User represents a dashboard user identified by wallet address.
type User struct {
	ID        string     `json:"id"`
	Address   string     `json:"address"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

const maxAddressLength = 42

// ErrInvalidInput wraps field validation failures for users, webpages and deployments.
var ErrInvalidInput = errors.New("invalid input")

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// UpsertUser creates the user for address or, if it exists, updates the email
// and records a login.
func (db *ServerDB) UpsertUser(address, email string) (*User, error) {
	address = normalizeAddress(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if len(address) > maxAddressLength {
		return nil, fmt.Errorf("%w: address exceeds %d characters", ErrInvalidInput, maxAddressLength)
	}
	email = strings.TrimSpace(email)

	existing, err := db.GetUserByAddress(address)
	if err != nil {
		return nil, err
	}

	now := db.now()
	if existing != nil {
		_, err := db.conn.Exec(
			`UPDATE users SET email = ?, updated_at = ?, last_login = ? WHERE id = ?`,
			email, now, now, existing.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		existing.Email = email
		existing.UpdatedAt = now
		existing.LastLogin = &now
		return existing, nil
	}

	id, err := generateID("u_")
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	_, err = db.conn.Exec(
		`INSERT INTO users (id, address, email, created_at, updated_at, last_login) VALUES (?, ?, ?, ?, ?, ?)`,
		id, address, email, now, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &User{ID: id, Address: address, Email: email, CreatedAt: now, UpdatedAt: now, LastLogin: &now}, nil
}

// GetUserByID returns the user with the given ID, or nil if not found.
func (db *ServerDB) GetUserByID(id string) (*User, error) {
	u := &User{}
	err := db.conn.QueryRow(
		`SELECT id, address, email, created_at, updated_at, last_login FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Address, &u.Email, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByAddress returns the user with the given wallet address (case-insensitive), or nil.
func (db *ServerDB) GetUserByAddress(address string) (*User, error) {
	address = normalizeAddress(address)
	u := &User{}
	err := db.conn.QueryRow(
		`SELECT id, address, email, created_at, updated_at, last_login FROM users WHERE address = ?`, address,
	).Scan(&u.ID, &u.Address, &u.Email, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by address: %w", err)
	}
	return u, nil
}
