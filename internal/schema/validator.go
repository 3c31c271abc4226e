package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// eventSchema describes the shape the form-submission trigger sends:
// namedValues maps each field label to the ordered list of recorded values,
// and range identifies the originating sheet tab.
const eventSchema = `{
	"type": "object",
	"required": ["namedValues", "range"],
	"properties": {
		"namedValues": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {"type": "string"}
			}
		},
		"range": {
			"type": "object",
			"required": ["sheet"],
			"properties": {
				"sheet": {"type": "string", "minLength": 1}
			}
		}
	}
}`

// Validator compiles and caches JSON Schemas used to check inbound bodies
// before any routing happens. Compiled schemas expire from the cache so a
// long-lived process re-reads them occasionally.
type Validator struct {
	compiler *js.Compiler
	cache    *expirable.LRU[string, *js.Schema]
}

func NewValidator(maxSize int) *Validator {
	c := js.NewCompiler()
	c.ExtractAnnotations = true

	return &Validator{
		compiler: c,
		cache:    expirable.NewLRU[string, *js.Schema](maxSize, nil, time.Hour),
	}
}

func (v *Validator) compiled(name, doc string) (*js.Schema, error) {
	if s, ok := v.cache.Get(name); ok {
		return s, nil
	}

	resourceURL := fmt.Sprintf("mem://schema/%s.json", name)
	if err := v.compiler.AddResource(resourceURL, strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}

	compiled, err := v.compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	v.cache.Add(name, compiled)
	return compiled, nil
}

// ValidateEvent checks a raw webhook body against the event schema
func (v *Validator) ValidateEvent(data []byte) error {
	compiled, err := v.compiled("form-event", eventSchema)
	if err != nil {
		return err
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse event body: %w", err)
	}

	if err := compiled.Validate(raw); err != nil {
		return fmt.Errorf("event validation failed: %w", err)
	}
	return nil
}
