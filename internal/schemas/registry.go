package schemas

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed *.schema.json
var schemaFiles embed.FS

// Schema names
const (
	EnrichmentBatch = "enrichment_batch"
	RankingBatch    = "ranking_batch"
)

// Schema is a parsed, compiled output schema.
type Schema struct {
	Name string
	Raw  string

	doc      map[string]any
	compiled *gojsonschema.Schema
}

var (
	cache   = make(map[string]*Schema)
	cacheMu sync.Mutex
)

// Get returns the embedded schema with the given name (without extension).
func Get(name string) (*Schema, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[name]; ok {
		return s, nil
	}

	data, err := schemaFiles.ReadFile(name + ".schema.json")
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "schema not found", Cause: err}
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "invalid JSON", Cause: err}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "invalid schema", Cause: err}
	}

	s := &Schema{Name: name, Raw: string(data), doc: doc, compiled: compiled}
	cache[name] = s
	return s, nil
}

// Document returns a deep copy of the schema as a generic map, suitable for
// embedding in a provider request.
func (s *Schema) Document() map[string]any {
	var cp map[string]any
	// Round-tripping a document we parsed ourselves cannot fail.
	data, _ := json.Marshal(s.doc)
	_ = json.Unmarshal(data, &cp)
	return cp
}

// Validate checks jsonContent against the schema.
func (s *Schema) Validate(jsonContent string) error {
	if !json.Valid([]byte(strings.TrimSpace(jsonContent))) {
		return fmt.Errorf("content for schema %s is not valid JSON", s.Name)
	}

	result, err := s.compiled.Validate(gojsonschema.NewStringLoader(jsonContent))
	if err != nil {
		return &SchemaLoadError{Name: s.Name, Message: "document load failed", Cause: err}
	}
	return resultError(result)
}
