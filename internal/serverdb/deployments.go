package serverdb

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Webpage is a site a user has published, keyed by domain.
type Webpage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CID       string    `json:"cid"`
	CreatedAt time.Time `json:"created_at"`
}

// Deployment records one upload of a webpage.
type Deployment struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	WebpageID       string    `json:"webpage_id"`
	TransactionHash string    `json:"transaction_hash"`
	DeploymentURL   string    `json:"deployment_url"`
	FilecoinInfo    string    `json:"filecoin_info"`
	DeployedAt      time.Time `json:"deployed_at"`
}

// DeploymentInput holds the fields for RecordDeployment.
type DeploymentInput struct {
	Name            string
	Domain          string
	CID             string
	DeploymentURL   string
	TransactionHash string
	FilecoinInfo    string
}

// UpsertWebpage creates or refreshes the webpage a user owns at domain.
func (db *ServerDB) UpsertWebpage(userID, name, domain, cid string) (*Webpage, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, fmt.Errorf("%w: domain is required", ErrInvalidInput)
	}
	if cid == "" {
		return nil, fmt.Errorf("%w: cid is required", ErrInvalidInput)
	}

	wp := &Webpage{}
	err := db.conn.QueryRow(
		`SELECT id, user_id, name, domain, cid, created_at FROM webpages WHERE user_id = ? AND domain = ?`,
		userID, domain,
	).Scan(&wp.ID, &wp.UserID, &wp.Name, &wp.Domain, &wp.CID, &wp.CreatedAt)
	switch {
	case err == sql.ErrNoRows:
		id, err := generateID("wp_")
		if err != nil {
			return nil, fmt.Errorf("generate webpage id: %w", err)
		}
		now := db.now()
		if _, err := db.conn.Exec(
			`INSERT INTO webpages (id, user_id, name, domain, cid, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, userID, name, domain, cid, now,
		); err != nil {
			return nil, fmt.Errorf("insert webpage: %w", err)
		}
		return &Webpage{ID: id, UserID: userID, Name: name, Domain: domain, CID: cid, CreatedAt: now}, nil
	case err != nil:
		return nil, fmt.Errorf("get webpage: %w", err)
	}

	if name == "" {
		name = wp.Name
	}
	if _, err := db.conn.Exec(`UPDATE webpages SET name = ?, cid = ? WHERE id = ?`, name, cid, wp.ID); err != nil {
		return nil, fmt.Errorf("update webpage: %w", err)
	}
	wp.Name = name
	wp.CID = cid
	return wp, nil
}

// RecordDeployment upserts the webpage for in.Domain and appends a deployment row.
func (db *ServerDB) RecordDeployment(userID string, in DeploymentInput) (*Deployment, error) {
	if in.DeploymentURL == "" {
		return nil, fmt.Errorf("%w: deployment url is required", ErrInvalidInput)
	}

	wp, err := db.UpsertWebpage(userID, in.Name, in.Domain, in.CID)
	if err != nil {
		return nil, err
	}

	id, err := generateID("dep_")
	if err != nil {
		return nil, fmt.Errorf("generate deployment id: %w", err)
	}

	now := db.now()
	_, err = db.conn.Exec(
		`INSERT INTO deployments (id, user_id, webpage_id, transaction_hash, deployment_url, filecoin_info, deployed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, wp.ID, in.TransactionHash, in.DeploymentURL, in.FilecoinInfo, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert deployment: %w", err)
	}

	return &Deployment{
		ID:              id,
		UserID:          userID,
		WebpageID:       wp.ID,
		TransactionHash: in.TransactionHash,
		DeploymentURL:   in.DeploymentURL,
		FilecoinInfo:    in.FilecoinInfo,
		DeployedAt:      now,
	}, nil
}

// ListDeployments returns a user's deployments, newest first.
func (db *ServerDB) ListDeployments(userID string) ([]*Deployment, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, webpage_id, transaction_hash, deployment_url, filecoin_info, deployed_at
		 FROM deployments WHERE user_id = ? ORDER BY deployed_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*Deployment
	for rows.Next() {
		d := &Deployment{}
		if err := rows.Scan(&d.ID, &d.UserID, &d.WebpageID, &d.TransactionHash, &d.DeploymentURL, &d.FilecoinInfo, &d.DeployedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deployments: iterate: %w", err)
	}
	return deployments, nil
}
