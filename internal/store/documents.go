package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AdminDocument is one archived administrative document. Records are
// never mutated after creation except by a re-classification overwrite
// keyed on the same source message id.
type AdminDocument struct {
	ID              uuid.UUID         `json:"id"`
	OwnerID         uuid.UUID         `json:"owner_id"`
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	Body            string            `json:"body"`
	Infos           map[string]string `json:"infos"`
	SourceChannel   string            `json:"source_channel"` // "upload" or "mail"
	MessageID       string            `json:"message_id,omitempty"`
	Sender          string            `json:"sender,omitempty"`
	Subject         string            `json:"subject,omitempty"`
	Deadline        string            `json:"deadline,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	UploadedAt      time.Time         `json:"uploaded_at"`
}

// UpsertDocument persists a document. With a message id the write is an
// upsert on (owner_id, message_id) so re-scanning a mailbox is
// idempotent; without one it is a plain insert.
func (s *Store) UpsertDocument(ctx context.Context, doc *AdminDocument) (*AdminDocument, error) {
	infosJSON, err := json.Marshal(doc.Infos)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal infos: %w", err)
	}
	recsJSON, err := json.Marshal(doc.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	var row *AdminDocument = doc
	if doc.MessageID != "" {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO admin_documents
			   (owner_id, name, doc_type, body, infos, source_channel,
			    message_id, sender, subject, deadline, recommendations, uploaded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			 ON CONFLICT (owner_id, message_id) WHERE message_id IS NOT NULL DO UPDATE
			 SET name = $2, doc_type = $3, body = $4, infos = $5,
			     sender = $8, subject = $9, deadline = $10, recommendations = $11
			 RETURNING id, uploaded_at`,
			doc.OwnerID, doc.Name, doc.Type, doc.Body, infosJSON, doc.SourceChannel,
			doc.MessageID, doc.Sender, doc.Subject, doc.Deadline, recsJSON,
		).Scan(&row.ID, &row.UploadedAt)
	} else {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO admin_documents
			   (owner_id, name, doc_type, body, infos, source_channel,
			    sender, subject, deadline, recommendations, uploaded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
			 RETURNING id, uploaded_at`,
			doc.OwnerID, doc.Name, doc.Type, doc.Body, infosJSON, doc.SourceChannel,
			doc.Sender, doc.Subject, doc.Deadline, recsJSON,
		).Scan(&row.ID, &row.UploadedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}
	return row, nil
}

// ListDocumentsByOwner returns an owner's archive, newest first.
func (s *Store) ListDocumentsByOwner(ctx context.Context, owner uuid.UUID) ([]AdminDocument, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, doc_type, body, infos, source_channel,
		        COALESCE(message_id, ''), COALESCE(sender, ''), COALESCE(subject, ''),
		        COALESCE(deadline, ''), recommendations, uploaded_at
		 FROM admin_documents
		 WHERE owner_id = $1
		 ORDER BY uploaded_at DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []AdminDocument
	for rows.Next() {
		var d AdminDocument
		var infosJSON, recsJSON []byte
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Type, &d.Body, &infosJSON,
			&d.SourceChannel, &d.MessageID, &d.Sender, &d.Subject, &d.Deadline,
			&recsJSON, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if infosJSON != nil {
			_ = json.Unmarshal(infosJSON, &d.Infos)
		}
		if recsJSON != nil {
			_ = json.Unmarshal(recsJSON, &d.Recommendations)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
