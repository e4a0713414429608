// Package mailbox scans a user's Gmail account for administrative
// documents: PDF attachments and message bodies, with enough provenance
// to make re-scans idempotent.
package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/capapp/cap-backend/internal/store"
)

const (
	// searchQuery restricts the scan to recent mail carrying PDFs.
	searchQuery = "has:attachment filename:pdf newer_than:90d"
	maxMessages = 25
)

// Attachment is a PDF pulled out of a scanned message.
type Attachment struct {
	Filename  string
	MediaType string
	Data      []byte
}

// Message is one scanned mail with its flattened body and attachments.
type Message struct {
	ID          string
	Sender      string
	Subject     string
	Body        string
	ReceivedAt  time.Time
	Attachments []Attachment
}

// CredentialStore persists OAuth tokens between scans.
type CredentialStore interface {
	GetMailCredential(ctx context.Context, ownerID uuid.UUID) (*store.MailCredential, error)
	SaveMailCredential(ctx context.Context, c *store.MailCredential) error
}

// NotConnectedError means the user never linked a mailbox.
type NotConnectedError struct {
	OwnerID uuid.UUID
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("no mailbox linked for user %s", e.OwnerID)
}

// Scanner reads a linked Gmail account using stored OAuth credentials.
type Scanner struct {
	oauth       *oauth2.Config
	credentials CredentialStore
	logger      *zap.Logger

	// newService is swapped in tests to avoid real API calls.
	newService func(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error)
}

// NewScanner builds a scanner from the application's Google OAuth client.
func NewScanner(clientID, clientSecret string, credentials CredentialStore, logger *zap.Logger) *Scanner {
	return &Scanner{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailReadonlyScope},
		},
		credentials: credentials,
		logger:      logger,
		newService: func(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
			return gmail.NewService(ctx, option.WithTokenSource(ts))
		},
	}
}

// Scan lists recent messages with PDF attachments for the given user and
// returns them with bodies flattened to text. Refreshed tokens are
// persisted back so the next scan does not repeat the refresh.
func (s *Scanner) Scan(ctx context.Context, ownerID uuid.UUID) ([]Message, error) {
	cred, err := s.credentials.GetMailCredential(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load mail credential: %w", err)
	}
	if cred == nil {
		return nil, &NotConnectedError{OwnerID: ownerID}
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
	}
	source := s.oauth.TokenSource(ctx, token)

	svc, err := s.newService(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	list, err := svc.Users.Messages.List("me").
		Q(searchQuery).
		MaxResults(maxMessages).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := s.fetchMessage(ctx, svc, ref.Id)
		if err != nil {
			s.logger.Warn("skipping unreadable message",
				zap.String("message_id", ref.Id),
				zap.Error(err))
			continue
		}
		messages = append(messages, *msg)
	}

	s.persistRefreshedToken(ctx, ownerID, token, source)
	return messages, nil
}

// persistRefreshedToken writes the token back when the source rotated it.
func (s *Scanner) persistRefreshedToken(ctx context.Context, ownerID uuid.UUID, old *oauth2.Token, source oauth2.TokenSource) {
	current, err := source.Token()
	if err != nil || current.AccessToken == old.AccessToken {
		return
	}
	refresh := current.RefreshToken
	if refresh == "" {
		refresh = old.RefreshToken
	}
	err = s.credentials.SaveMailCredential(ctx, &store.MailCredential{
		OwnerID:      ownerID,
		AccessToken:  current.AccessToken,
		RefreshToken: refresh,
		Expiry:       current.Expiry,
	})
	if err != nil {
		s.logger.Warn("persisting refreshed token failed", zap.Error(err))
	}
}

func (s *Scanner) fetchMessage(ctx context.Context, svc *gmail.Service, id string) (*Message, error) {
	full, err := svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:         id,
		ReceivedAt: time.UnixMilli(full.InternalDate),
	}
	if full.Payload != nil {
		for _, h := range full.Payload.Headers {
			switch h.Name {
			case "From":
				msg.Sender = h.Value
			case "Subject":
				msg.Subject = h.Value
			}
		}
	}

	body, err := ExtractBody(full.Payload)
	if err != nil {
		return nil, err
	}
	msg.Body = body

	for _, part := range collectParts(full.Payload) {
		if part.Filename == "" || !strings.HasSuffix(strings.ToLower(part.Filename), ".pdf") {
			continue
		}
		data, err := s.attachmentData(ctx, svc, id, part)
		if err != nil {
			s.logger.Warn("skipping unreadable attachment",
				zap.String("message_id", id),
				zap.String("filename", part.Filename),
				zap.Error(err))
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename:  part.Filename,
			MediaType: "application/pdf",
			Data:      data,
		})
	}
	return msg, nil
}

func (s *Scanner) attachmentData(ctx context.Context, svc *gmail.Service, messageID string, part *gmail.MessagePart) ([]byte, error) {
	if part.Body == nil {
		return nil, fmt.Errorf("attachment %q has no body", part.Filename)
	}
	if part.Body.Data != "" {
		return base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
	}
	if part.Body.AttachmentId == "" {
		return nil, fmt.Errorf("attachment %q has no data", part.Filename)
	}
	att, err := svc.Users.Messages.Attachments.Get("me", messageID, part.Body.AttachmentId).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(att.Data, "="))
}

// ExtractBody returns the message body as plain text, preferring the
// text/plain part and falling back to flattened HTML.
func ExtractBody(payload *gmail.MessagePart) (string, error) {
	if payload == nil {
		return "", nil
	}
	var plain, htmlBody string
	for _, part := range collectParts(payload) {
		if part.Filename != "" || part.Body == nil || part.Body.Data == "" {
			continue
		}
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(part.MimeType, "text/plain") && plain == "":
			plain = string(decoded)
		case strings.HasPrefix(part.MimeType, "text/html") && htmlBody == "":
			htmlBody = string(decoded)
		}
	}
	if plain != "" {
		return strings.TrimSpace(plain), nil
	}
	if htmlBody != "" {
		return HTMLToText(htmlBody)
	}
	return "", nil
}

// collectParts flattens the MIME tree, including the root part itself.
func collectParts(payload *gmail.MessagePart) []*gmail.MessagePart {
	if payload == nil {
		return nil
	}
	parts := []*gmail.MessagePart{payload}
	for _, child := range payload.Parts {
		parts = append(parts, collectParts(child)...)
	}
	return parts
}
