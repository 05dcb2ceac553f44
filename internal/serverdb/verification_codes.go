package serverdb

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// VerificationCode is a pending or completed CLI pairing attempt.
type VerificationCode struct {
	ID         string
	Code       string
	UserID     *string
	IsVerified bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
	ExpiresAt  time.Time

	// SessionToken is the plaintext CLI session token. Only RegisterCode
	// sets it; the store keeps a sha256 hash.
	SessionToken string
}

const (
	CodeLength = 6
	CodeTTL    = 10 * time.Minute

	sessionPrefix = "dhs_"
	sessionBytes  = 32
)

// Registry errors. Callers match these with errors.Is.
var (
	ErrValidation      = errors.New("invalid verification code")
	ErrNotFound        = errors.New("verification code not found")
	ErrExpired         = errors.New("verification code has expired")
	ErrAlreadyVerified = errors.New("verification code already verified")
)

const verificationCodeColumns = `id, code, user_id, is_verified, verified_at, created_at, expires_at`

func scanVerificationCode(row interface{ Scan(...any) error }) (*VerificationCode, error) {
	vc := &VerificationCode{}
	if err := row.Scan(&vc.ID, &vc.Code, &vc.UserID, &vc.IsVerified, &vc.VerifiedAt, &vc.CreatedAt, &vc.ExpiresAt); err != nil {
		return nil, err
	}
	return vc, nil
}

// RegisterCode stores a new unverified code that expires CodeTTL from now.
// No identity is bound at this point; the verifying user is recorded by VerifyCode.
func (db *ServerDB) RegisterCode(code string) (*VerificationCode, error) {
	if len(code) != CodeLength {
		return nil, fmt.Errorf("%w: must be %d characters", ErrValidation, CodeLength)
	}

	id, err := generateID("vc_")
	if err != nil {
		return nil, fmt.Errorf("generate verification code id: %w", err)
	}
	secret := make([]byte, sessionBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	token := sessionPrefix + hex.EncodeToString(secret)

	now := db.now()
	expiresAt := now.Add(CodeTTL)

	_, err = db.conn.Exec(
		`INSERT INTO verification_codes (id, code, is_verified, created_at, expires_at, session_hash) VALUES (?, ?, 0, ?, ?, ?)`,
		id, code, now, expiresAt, hashSession(token),
	)
	if err != nil {
		return nil, fmt.Errorf("insert verification code: %w", err)
	}

	return &VerificationCode{
		ID:           id,
		Code:         code,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
		SessionToken: token,
	}, nil
}

func hashSession(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// getVerificationCode returns the code record with the given ID, or nil.
func (db *ServerDB) getVerificationCode(id string) (*VerificationCode, error) {
	vc, err := scanVerificationCode(db.conn.QueryRow(
		`SELECT `+verificationCodeColumns+` FROM verification_codes WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification code: %w", err)
	}
	return vc, nil
}

// latestPendingCode returns the most recent unverified record for code, or nil.
func (db *ServerDB) latestPendingCode(code string) (*VerificationCode, error) {
	vc, err := scanVerificationCode(db.conn.QueryRow(
		`SELECT `+verificationCodeColumns+` FROM verification_codes
		 WHERE code = ? AND is_verified = 0
		 ORDER BY created_at DESC, id DESC LIMIT 1`, code,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending verification code: %w", err)
	}
	return vc, nil
}

// latestVerifiedCode returns the most recent verified record for code, or nil.
func (db *ServerDB) latestVerifiedCode(code string) (*VerificationCode, error) {
	vc, err := scanVerificationCode(db.conn.QueryRow(
		`SELECT `+verificationCodeColumns+` FROM verification_codes
		 WHERE code = ? AND is_verified = 1
		 ORDER BY verified_at DESC, id DESC LIMIT 1`, code,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verified verification code: %w", err)
	}
	return vc, nil
}

// VerifyCode binds userID to the most recent unverified record matching code
// and marks it verified. The update is conditional on is_verified = 0, so of
// several concurrent callers exactly one succeeds. On ErrExpired the stale
// record is returned alongside the error.
func (db *ServerDB) VerifyCode(code, userID string) (*VerificationCode, error) {
	if len(code) != CodeLength || userID == "" {
		return nil, ErrValidation
	}

	vc, err := db.latestPendingCode(code)
	if err != nil {
		return nil, err
	}
	if vc == nil {
		verified, err := db.latestVerifiedCode(code)
		if err != nil {
			return nil, err
		}
		if verified != nil {
			return nil, ErrAlreadyVerified
		}
		return nil, ErrNotFound
	}

	now := db.now()
	if now.After(vc.ExpiresAt) {
		return vc, ErrExpired
	}

	res, err := db.conn.Exec(
		`UPDATE verification_codes SET is_verified = 1, user_id = ?, verified_at = ?
		 WHERE id = ? AND is_verified = 0`,
		userID, now, vc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("verify code: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, ErrAlreadyVerified
	}

	vc.IsVerified = true
	vc.UserID = &userID
	vc.VerifiedAt = &now
	return vc, nil
}

// CodeStatus reports whether code has been verified. It returns ErrNotFound
// when no record with that value was ever registered.
func (db *ServerDB) CodeStatus(code string) (bool, error) {
	var total, verified int
	err := db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(is_verified), 0) FROM verification_codes WHERE code = ?`, code,
	).Scan(&total, &verified)
	if err != nil {
		return false, fmt.Errorf("code status: %w", err)
	}
	if total == 0 {
		return false, ErrNotFound
	}
	return verified > 0, nil
}

// SessionCode returns the pairing record a CLI session token was issued
// for, or ErrNotFound. Code values repeat across pairings; the token does not.
func (db *ServerDB) SessionCode(token string) (*VerificationCode, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	vc, err := scanVerificationCode(db.conn.QueryRow(
		`SELECT `+verificationCodeColumns+` FROM verification_codes WHERE session_hash = ?`, hashSession(token),
	))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session code: %w", err)
	}
	return vc, nil
}

// ResolveSession returns the user who verified the pairing behind token.
// Unknown tokens and pairings that were never verified give ErrNotFound.
func (db *ServerDB) ResolveSession(token string) (string, error) {
	vc, err := db.SessionCode(token)
	if err != nil {
		return "", err
	}
	if !vc.IsVerified || vc.UserID == nil {
		return "", ErrNotFound
	}
	return *vc.UserID, nil
}

// ExpiredPendingCodes returns unverified codes whose expiry has passed.
func (db *ServerDB) ExpiredPendingCodes() ([]VerificationCode, error) {
	rows, err := db.conn.Query(
		`SELECT `+verificationCodeColumns+` FROM verification_codes
		 WHERE is_verified = 0 AND expires_at <= ?`, db.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("get expired codes: %w", err)
	}
	defer rows.Close()

	var results []VerificationCode
	for rows.Next() {
		vc, err := scanVerificationCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired code: %w", err)
		}
		results = append(results, *vc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired codes: %w", err)
	}
	return results, nil
}

// PruneExpiredCodes deletes unverified codes that expired more than olderThan ago.
// Verified codes are kept; they back deployment attribution.
func (db *ServerDB) PruneExpiredCodes(olderThan time.Duration) (int64, error) {
	cutoff := db.now().Add(-olderThan)
	res, err := db.conn.Exec(
		`DELETE FROM verification_codes WHERE is_verified = 0 AND expires_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune expired codes: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
