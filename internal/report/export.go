package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "report-v1.schema.json"

//go:embed schema/report-v1.schema.json
var schemaJSON []byte

// ErrInvalidReport is returned when a report does not match the export schema.
var ErrInvalidReport = errors.New("report does not match schema")

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func reportSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks an encoded report against the embedded schema.
func Validate(data []byte) error {
	schema, err := reportSchema()
	if err != nil {
		return fmt.Errorf("compile report schema: %w", err)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return nil
}

// Encode marshals r as indented JSON and validates the result.
func Encode(r *Report) ([]byte, error) {
	if r == nil {
		return nil, errors.New("encode report: nil report")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Export writes the validated JSON form of r to w. Nothing is written when
// validation fails.
func Export(w io.Writer, r *Report) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
