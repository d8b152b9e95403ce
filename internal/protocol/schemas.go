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

// CompileSchema compiles one of the embedded schemas by file name.
func CompileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	url := "mem:///schemas/" + name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	return c.Compile(url)
}

// Validator checks inbound client messages before they are decoded into
// typed structs.
type Validator struct {
	hello *jsonschema.Schema
	req   *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	hello, err := CompileSchema("hello.schema.json")
	if err != nil {
		return nil, err
	}
	req, err := CompileSchema("req.schema.json")
	if err != nil {
		return nil, err
	}
	return &Validator{hello: hello, req: req}, nil
}

func (v *Validator) ValidateHello(raw []byte) error { return validateRaw(v.hello, raw) }

func (v *Validator) ValidateReq(raw []byte) error { return validateRaw(v.req, raw) }

func validateRaw(s *jsonschema.Schema, raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}
