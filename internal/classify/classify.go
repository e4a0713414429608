// Package classify labels administrative documents and pulls out
// type-specific fields via the reasoning service.
package classify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/capapp/cap-backend/internal/llm"
	"github.com/capapp/cap-backend/internal/prompts"
)

// Known document types. The set is open: the model may return something
// else and we keep it, but these are the ones the prompt enumerates.
const (
	TypeInvoice              = "invoice"
	TypeTaxNotice            = "tax-notice"
	TypeBenefitStatement     = "benefit-statement"
	TypeRentReceipt          = "rent-receipt"
	TypeInsuranceCertificate = "insurance-certificate"
	TypeOther                = "other"
)

// Classification is the classifier's verdict on one document.
type Classification struct {
	Type            string            `json:"type"`
	Infos           map[string]string `json:"infos"`
	Deadline        string            `json:"echeance,omitempty"`
	Recommendations []string          `json:"recommandations,omitempty"`
}

// Default returns the fallback classification used when the reply cannot
// be parsed or validated. Archival classification may proceed on this
// default; job search never gets an equivalent.
func Default() Classification {
	return Classification{Type: TypeOther, Infos: map[string]string{}}
}

// Classifier wraps the shared reasoning-service client.
type Classifier struct {
	client     llm.Client
	retryOther bool
}

// New builds a Classifier. retryOther controls whether a reply that fell
// back to the default is retried once before being accepted as a
// best-effort terminal result.
func New(client llm.Client, retryOther bool) *Classifier {
	return &Classifier{client: client, retryOther: retryOther}
}

// rawClassification tolerates the loose typing models produce: infos
// values may come back as numbers.
type rawClassification struct {
	Type            string         `json:"type"`
	Infos           map[string]any `json:"infos"`
	Deadline        string         `json:"echeance"`
	Recommendations []string       `json:"recommandations"`
}

// Classify labels the document text. It never returns a hard failure:
// when the reply is unusable the default classification comes back along
// with the cause, which callers log and otherwise ignore.
func (c *Classifier) Classify(ctx context.Context, documentText string) (Classification, error) {
	if strings.TrimSpace(documentText) == "" {
		return Default(), fmt.Errorf("empty document text")
	}

	result, err := c.classifyOnce(ctx, documentText)
	if err != nil && c.retryOther {
		result, err = c.classifyOnce(ctx, documentText)
	}
	if err != nil {
		return Default(), err
	}
	return result, nil
}

func (c *Classifier) classifyOnce(ctx context.Context, documentText string) (Classification, error) {
	template := prompts.MustGet("classify.json", "classify-document")
	prompt := prompts.Format(template, map[string]string{"DocumentText": documentText})

	reply, err := c.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return Classification{}, fmt.Errorf("classification call failed: %w", err)
	}

	var raw rawClassification
	if err := llm.DecodeObject(reply, &raw); err != nil {
		return Classification{}, err
	}

	if err := validateReply(raw); err != nil {
		return Classification{}, err
	}

	result := Classification{
		Type:            strings.ToLower(strings.TrimSpace(raw.Type)),
		Infos:           coerceInfos(raw.Infos),
		Deadline:        strings.TrimSpace(raw.Deadline),
		Recommendations: raw.Recommendations,
	}
	return result, nil
}

// coerceInfos flattens the model's loosely typed key→value map into
// strings, dropping nulls and nested values.
func coerceInfos(infos map[string]any) map[string]string {
	out := make(map[string]string, len(infos))
	for k, v := range infos {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out[k] = s
			}
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	return out
}
