package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBase = "https://overmind.cash/schemas/"

var schemaFiles = map[string]string{
	TypeHello:    "hello.schema.json",
	TypeReaction: "reaction.schema.json",
	TypeMessage:  "message.schema.json",
	TypeCommand:  "command.schema.json",
	TypeOutcome:  "outcome.schema.json",
}

// Validator checks raw wire messages against the embedded JSON schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for _, name := range schemaFiles {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(schemaFiles))}
	for typ, name := range schemaFiles {
		s, err := c.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.schemas[typ] = s
	}
	return v, nil
}

// Validate checks raw against the schema registered for msgType.
func (v *Validator) Validate(msgType string, raw []byte) error {
	s, ok := v.schemas[msgType]
	if !ok {
		return fmt.Errorf("no schema for message type %q", msgType)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

// ValidateValue marshals v and validates it as msgType.
func (v *Validator) ValidateValue(msgType string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return v.Validate(msgType, b)
}
