// Package report renders parse results as JSON and checks them against the published response schema.
package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"coretax/internal"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBase = "https://coretax.local/schema/"

const (
	ParseResultSchema = schemaBase + "parse_result.json"
	BatchResultSchema = schemaBase + "batch_result.json"
)

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		for _, name := range []string{"parse_result.json", "batch_result.json"} {
			raw, err := schemaFS.ReadFile("schema/" + name)
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(schemaBase+name, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}
		compiled = map[string]*jsonschema.Schema{}
		for _, url := range []string{ParseResultSchema, BatchResultSchema} {
			s, err := compiler.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", url, err)
				return
			}
			compiled[url] = s
		}
	})
	return compiled, compileErr
}

// Validate checks encoded JSON against one of the embedded schemas.
func Validate(schemaURL string, data []byte) error {
	all, err := schemas()
	if err != nil {
		return err
	}
	schema, ok := all[schemaURL]
	if !ok {
		return fmt.Errorf("unknown schema: %s", schemaURL)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// Encode marshals v as indented JSON and validates it before returning.
func Encode(v any) ([]byte, error) {
	var schemaURL string
	switch v.(type) {
	case internal.ParseResult, *internal.ParseResult:
		schemaURL = ParseResultSchema
	case internal.BatchResult, *internal.BatchResult:
		schemaURL = BatchResultSchema
	default:
		return nil, fmt.Errorf("report: unsupported type %T", v)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := Validate(schemaURL, data); err != nil {
		return nil, err
	}
	return data, nil
}

func WriteJSON(w io.Writer, v any) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
