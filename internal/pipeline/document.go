package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capapp/cap-backend/internal/extraction"
	"github.com/capapp/cap-backend/internal/store"
)

// Source channels recorded on archived documents.
const (
	SourceUpload  = "upload"
	SourceMailbox = "mail"
)

// DocumentRequest is one document to classify and archive. Either Raw or
// BodyText must be set; BodyText covers mail bodies that arrive already
// as text.
type DocumentRequest struct {
	OwnerID       uuid.UUID
	Name          string
	Raw           *extraction.RawDocument
	BodyText      string
	SourceChannel string
	MessageID     string
	Sender        string
	Subject       string
}

// DocumentResult reports one archived document. ClassifyDegraded is set
// when the classifier fell back to its default verdict.
type DocumentResult struct {
	Document         *store.AdminDocument  `json:"document"`
	Provenance       extraction.Provenance `json:"texte_source,omitempty"`
	ClassifyDegraded bool                  `json:"classification_degradee,omitempty"`
}

// ScanResult summarizes one mailbox scan.
type ScanResult struct {
	MessagesSeen int              `json:"messages"`
	Archived     []DocumentResult `json:"documents"`
	Skipped      int              `json:"ignores"`
}

// Documents runs administrative documents through extraction,
// classification and archival.
type Documents struct {
	texts      TextExtractor
	classifier DocumentClassifier
	documents  DocumentStore
	scanner    MailScanner
	logger     *zap.Logger
}

// NewDocuments wires the flow. scanner may be nil when no mail provider
// is configured; ScanMailbox then fails with a clear error.
func NewDocuments(texts TextExtractor, classifier DocumentClassifier, documents DocumentStore, scanner MailScanner, logger *zap.Logger) *Documents {
	return &Documents{
		texts:      texts,
		classifier: classifier,
		documents:  documents,
		scanner:    scanner,
		logger:     logger,
	}
}

// Ingest classifies one document and archives it. Unlike the job flow,
// text extraction failure is fatal here: there is nothing to archive
// without text.
func (d *Documents) Ingest(ctx context.Context, req DocumentRequest) (*DocumentResult, error) {
	result := &DocumentResult{}

	text := req.BodyText
	if req.Raw != nil && len(req.Raw.Data) > 0 {
		extracted, err := d.texts.Extract(ctx, *req.Raw)
		if err != nil {
			return nil, fmt.Errorf("extract document text: %w", err)
		}
		text = extracted.Text
		result.Provenance = extracted.Provenance
	}
	if text == "" {
		return nil, fmt.Errorf("document %q has no readable content", req.Name)
	}

	verdict, err := d.classifier.Classify(ctx, text)
	if err != nil {
		// The classifier already substituted its default verdict;
		// archive proceeds on it.
		d.logger.Warn("classification degraded to default",
			zap.String("name", req.Name),
			zap.Error(err))
		result.ClassifyDegraded = true
	}

	channel := req.SourceChannel
	if channel == "" {
		channel = SourceUpload
	}
	saved, err := d.documents.UpsertDocument(ctx, &store.AdminDocument{
		OwnerID:         req.OwnerID,
		Name:            req.Name,
		Type:            verdict.Type,
		Body:            text,
		Infos:           verdict.Infos,
		SourceChannel:   channel,
		MessageID:       req.MessageID,
		Sender:          req.Sender,
		Subject:         req.Subject,
		Deadline:        verdict.Deadline,
		Recommendations: verdict.Recommendations,
	})
	if err != nil {
		return nil, fmt.Errorf("archive document: %w", err)
	}
	result.Document = saved
	return result, nil
}

// ScanMailbox pulls recent PDF-bearing messages for the user and ingests
// every attachment. Unreadable attachments are counted and skipped; the
// scan itself only fails when the mailbox cannot be read at all.
func (d *Documents) ScanMailbox(ctx context.Context, ownerID uuid.UUID) (*ScanResult, error) {
	if d.scanner == nil {
		return nil, fmt.Errorf("no mail provider configured")
	}

	messages, err := d.scanner.Scan(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("scan mailbox: %w", err)
	}

	result := &ScanResult{MessagesSeen: len(messages)}
	for _, msg := range messages {
		for _, att := range msg.Attachments {
			doc, err := d.Ingest(ctx, DocumentRequest{
				OwnerID: ownerID,
				Name:    att.Filename,
				Raw: &extraction.RawDocument{
					Filename:  att.Filename,
					MediaType: att.MediaType,
					Data:      att.Data,
				},
				BodyText:      msg.Body,
				SourceChannel: SourceMailbox,
				MessageID:     msg.ID,
				Sender:        msg.Sender,
				Subject:       msg.Subject,
			})
			if err != nil {
				d.logger.Warn("skipping mailbox attachment",
					zap.String("message_id", msg.ID),
					zap.String("filename", att.Filename),
					zap.Error(err))
				result.Skipped++
				continue
			}
			result.Archived = append(result.Archived, *doc)
		}
	}
	return result, nil
}
