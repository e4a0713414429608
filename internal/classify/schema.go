package classify

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// replySchema is the minimal structural contract the classifier reply
// must satisfy before we accept it. Infos values are left loose on
// purpose; coercion handles numbers.
const replySchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "infos": {"type": "object"},
    "echeance": {"type": "string"},
    "recommandations": {"type": "array", "items": {"type": "string"}}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(replySchema)

// validateReply checks the decoded reply against the structural schema.
func validateReply(raw rawClassification) error {
	doc, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to re-encode reply: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("classification reply rejected by schema: %v", result.Errors())
	}
	return nil
}
