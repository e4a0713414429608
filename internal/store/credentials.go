package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MailCredential is a per-user mailbox OAuth token pair. The refreshed
// access token must be written back here whenever it changes.
type MailCredential struct {
	OwnerID      uuid.UUID
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// GetMailCredential returns the stored credential for an owner, or nil
// when the owner never connected a mailbox.
func (s *Store) GetMailCredential(ctx context.Context, owner uuid.UUID) (*MailCredential, error) {
	var c MailCredential
	err := s.pool.QueryRow(ctx,
		`SELECT owner_id, access_token, refresh_token, expiry
		 FROM mail_credentials WHERE owner_id = $1`,
		owner,
	).Scan(&c.OwnerID, &c.AccessToken, &c.RefreshToken, &c.Expiry)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mail credential: %w", err)
	}
	return &c, nil
}

// SaveMailCredential stores or replaces an owner's credential.
func (s *Store) SaveMailCredential(ctx context.Context, c *MailCredential) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mail_credentials (owner_id, access_token, refresh_token, expiry)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_id) DO UPDATE
		 SET access_token = $2, refresh_token = $3, expiry = $4`,
		c.OwnerID, c.AccessToken, c.RefreshToken, c.Expiry,
	)
	if err != nil {
		return fmt.Errorf("failed to save mail credential: %w", err)
	}
	return nil
}
