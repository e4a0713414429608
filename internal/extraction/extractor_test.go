package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner stands in for the pdftotext binary.
type fakeRunner struct {
	stdout string
	err    error
	calls  int
}

func (f *fakeRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
	f.calls++
	return []byte(f.stdout), nil, f.err
}

// fakeOCR stands in for the OCR service client.
type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func pdfDoc() RawDocument {
	return RawDocument{Filename: "cv.pdf", MediaType: "application/pdf", Data: []byte("%PDF-1.4 fake")}
}

func TestExtract_NativeLayerSufficient(t *testing.T) {
	native := strings.Repeat("Développeur JavaScript confirmé à Paris. ", 3)
	runner := &fakeRunner{stdout: native}
	ocr := &fakeOCR{text: "should not be used"}

	ex := NewExtractor(ocr, "fra").WithRunner(runner)
	got, err := ex.Extract(context.Background(), pdfDoc())

	require.NoError(t, err)
	assert.Equal(t, ProvenanceNative, got.Provenance)
	assert.Equal(t, native, got.Text)
	assert.Zero(t, ocr.calls, "OCR must not run when the text layer is sufficient")
}

func TestExtract_SparseTextLayerFallsBackToOCR(t *testing.T) {
	runner := &fakeRunner{stdout: "  \n CV \n "} // under 50 non-whitespace chars
	ocr := &fakeOCR{text: "Texte reconnu par OCR sur un document scanné."}

	ex := NewExtractor(ocr, "fra").WithRunner(runner)
	got, err := ex.Extract(context.Background(), pdfDoc())

	require.NoError(t, err)
	assert.Equal(t, ProvenanceOCR, got.Provenance)
	assert.Equal(t, ocr.text, got.Text)
	assert.Equal(t, 1, ocr.calls)
}

func TestExtract_NativeErrorFallsBackToOCR(t *testing.T) {
	runner := &fakeRunner{err: errors.New("pdftotext: damaged file")}
	ocr := &fakeOCR{text: "Contenu récupéré par reconnaissance optique."}

	ex := NewExtractor(ocr, "fra").WithRunner(runner)
	got, err := ex.Extract(context.Background(), pdfDoc())

	require.NoError(t, err)
	assert.Equal(t, ProvenanceOCR, got.Provenance)
	assert.Equal(t, 1, ocr.calls)
}

func TestExtract_NoRecognizerConfiguredFailsCleanly(t *testing.T) {
	ex := NewExtractor(nil, "fra").WithRunner(&fakeRunner{stdout: "short"})

	_, err := ex.Extract(context.Background(), pdfDoc())

	var failed *ExtractionFailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, failed.OCRErr, errNoRecognizer)

	// Same terminal failure for documents that skip the native layer.
	_, err = ex.Extract(context.Background(), RawDocument{
		Filename: "scan.jpg", MediaType: "image/jpeg", Data: []byte{0xff, 0xd8},
	})
	require.ErrorAs(t, err, &failed)
}

func TestExtract_ImageGoesStraightToOCR(t *testing.T) {
	runner := &fakeRunner{stdout: "never called"}
	ocr := &fakeOCR{text: "Attestation carte vitale."}

	ex := NewExtractor(ocr, "fra").WithRunner(runner)
	got, err := ex.Extract(context.Background(), RawDocument{
		Filename: "vitale.jpg", MediaType: "image/jpeg", Data: []byte{0xFF, 0xD8},
	})

	require.NoError(t, err)
	assert.Equal(t, ProvenanceOCR, got.Provenance)
	assert.Zero(t, runner.calls, "no native text layer for images")
}

func TestExtract_BothPathsFail(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no text layer")}
	ocr := &fakeOCR{err: errors.New("service unreachable")}

	ex := NewExtractor(ocr, "fra").WithRunner(runner)
	_, err := ex.Extract(context.Background(), pdfDoc())

	var failed *ExtractionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, ocr.calls, "OCR is attempted exactly once")
}

func TestExtract_EmptyOCRTextIsFailure(t *testing.T) {
	runner := &fakeRunner{stdout: "short"}
	ocr := &fakeOCR{text: "   \n "}

	ex := NewExtractor(ocr, "fra").WithRunner(runner)
	_, err := ex.Extract(context.Background(), pdfDoc())

	var failed *ExtractionFailedError
	require.ErrorAs(t, err, &failed)
}

func TestCountNonWhitespace(t *testing.T) {
	assert.Equal(t, 0, countNonWhitespace(" \t\n"))
	assert.Equal(t, 5, countNonWhitespace(" a b\tcde\n"))
}
