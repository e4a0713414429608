// Package extraction turns an uploaded document binary into plain text,
// preferring the native text layer and falling back to OCR when the
// document is a scan.
package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// errNoRecognizer stands in for the OCR step when no recognizer is
// configured for the deployment.
var errNoRecognizer = errors.New("no ocr recognizer configured")

// Provenance records which path produced the text.
type Provenance string

const (
	// ProvenanceNative means the document's own text layer was used.
	ProvenanceNative Provenance = "native"
	// ProvenanceOCR means optical character recognition was used.
	ProvenanceOCR Provenance = "ocr"
)

// minNativeChars is the minimum number of non-whitespace characters the
// native text layer must yield; below it the document is treated as a
// scan and sent to OCR.
const minNativeChars = 50

// RawDocument is an uploaded binary with its declared media type.
type RawDocument struct {
	Filename  string
	MediaType string
	Data      []byte
}

// ExtractedText is best-effort plain text plus its provenance. It lives
// only for the duration of one pipeline invocation.
type ExtractedText struct {
	Text       string
	Provenance Provenance
}

// Recognizer is the OCR collaborator.
type Recognizer interface {
	Recognize(ctx context.Context, filename string, data []byte, language string) (string, error)
}

// Extractor implements the native-then-OCR extraction chain.
type Extractor struct {
	runner    Runner
	ocr       Recognizer
	language  string
	pdftotext string
}

// NewExtractor builds an Extractor. language is the deployment's document
// language hint passed to the OCR service (e.g. "fra").
func NewExtractor(ocr Recognizer, language string) *Extractor {
	return &Extractor{
		runner:    ExecRunner{},
		ocr:       ocr,
		language:  language,
		pdftotext: "pdftotext",
	}
}

// WithRunner replaces the command runner. Used by tests.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract returns the document's text or an ExtractionFailedError when
// neither the native layer nor OCR produced anything. The failure is
// terminal for the request: there is no further provider to try.
func (e *Extractor) Extract(ctx context.Context, doc RawDocument) (*ExtractedText, error) {
	var nativeErr error

	if isPDF(doc) {
		text, err := e.nativeText(ctx, doc)
		if err == nil && countNonWhitespace(text) >= minNativeChars {
			return &ExtractedText{Text: text, Provenance: ProvenanceNative}, nil
		}
		nativeErr = err
	}

	if e.ocr == nil {
		return nil, &ExtractionFailedError{NativeErr: nativeErr, OCRErr: errNoRecognizer}
	}
	text, ocrErr := e.ocr.Recognize(ctx, doc.Filename, doc.Data, e.language)
	if ocrErr != nil || strings.TrimSpace(text) == "" {
		return nil, &ExtractionFailedError{NativeErr: nativeErr, OCRErr: ocrErr}
	}

	return &ExtractedText{Text: text, Provenance: ProvenanceOCR}, nil
}

// nativeText extracts the PDF text layer with pdftotext.
func (e *Extractor) nativeText(ctx context.Context, doc RawDocument) (string, error) {
	tmp, err := os.CreateTemp("", "cap-doc-*.pdf")
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := tmp.Write(doc.Data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	out, _, err := e.runner.Run(ctx, e.pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func isPDF(doc RawDocument) bool {
	if strings.Contains(strings.ToLower(doc.MediaType), "pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(doc.Filename), ".pdf")
}

func countNonWhitespace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
