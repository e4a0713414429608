package extraction

import "fmt"

// ExtractionFailedError means neither the native text layer nor OCR
// produced text. Callers must not retry within the same request; the
// user has to resupply a readable document.
type ExtractionFailedError struct {
	NativeErr error
	OCRErr    error
}

func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("text extraction failed (native: %v, ocr: %v)", e.NativeErr, e.OCRErr)
}
