package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// compileSchema builds a permissive validator from a tool's parameter
// schema. additionalProperties is dropped everywhere so unknown fields pass
// through to the handler. An empty schema yields a nil validator.
func compileSchema(raw json.RawMessage) (*gojsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	stripAdditional(doc)
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	return s, nil
}

func stripAdditional(v any) {
	switch n := v.(type) {
	case map[string]any:
		delete(n, "additionalProperties")
		for _, child := range n {
			stripAdditional(child)
		}
	case []any:
		for _, child := range n {
			stripAdditional(child)
		}
	}
}

// validateArgs returns a readable description of every schema violation,
// or "" when args conform.
func validateArgs(s *gojsonschema.Schema, args map[string]any) string {
	if s == nil {
		return ""
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err.Error()
	}
	if res.Valid() {
		return ""
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}
