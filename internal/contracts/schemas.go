package contracts

import (
	"embed"
	"encoding/json"
	"fmt"
	"log"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/events/raw-listing/v1.json schemas/events/valuation-request/v1.json
var schemaFS embed.FS

var compiledSchemas = make(map[string]*jsonschema.Schema)

func compileEmbedded(compiler *jsonschema.Compiler, path, key string) {
	raw, err := schemaFS.Open(path)
	if err != nil {
		log.Fatalf("failed to open embedded schema %s: %v", path, err)
	}
	if err := compiler.AddResource(path, raw); err != nil {
		log.Fatalf("failed to register schema %s: %v", path, err)
	}
	schema, err := compiler.Compile(path)
	if err != nil {
		log.Fatalf("failed to compile schema %s: %v", path, err)
	}
	compiledSchemas[key] = schema
}

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	compileEmbedded(compiler, "schemas/events/raw-listing/v1.json", "RawListingEvent/1.0.0")
	compileEmbedded(compiler, "schemas/events/valuation-request/v1.json", "ValuationRequestEvent/1.0.0")
}

// ValidateEvent checks a message body against the schema registered for the
// given event type and version.
func ValidateEvent(eventType, eventVersion string, body []byte) error {
	key := fmt.Sprintf("%s/%s", eventType, eventVersion)
	schema, ok := compiledSchemas[key]
	if !ok {
		return fmt.Errorf("schema for event '%s' version '%s' not found", eventType, eventVersion)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("message body is not a valid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}

	return nil
}
