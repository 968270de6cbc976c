package web

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// releaseEventSchema is the minimal shape an inbound release event must
// have before shiphook parses it into typed structs.
var releaseEventSchema = map[string]any{
	"type":     "object",
	"required": []string{"action", "release", "repository"},
	"properties": map[string]any{
		"action": map[string]any{
			"type":      "string",
			"minLength": 1,
		},
		"release": map[string]any{
			"type":     "object",
			"required": []string{"tag_name"},
			"properties": map[string]any{
				"tag_name": map[string]any{
					"type":      "string",
					"minLength": 1,
					"maxLength": 128,
				},
			},
		},
		"repository": map[string]any{
			"type":     "object",
			"required": []string{"full_name"},
		},
	},
}

// validateEventShape checks the decoded payload against the release event
// schema and returns a joined description of every violation.
func validateEventShape(payload map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(releaseEventSchema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var violations []string
		for _, desc := range result.Errors() {
			violations = append(violations, desc.String())
		}

		return fmt.Errorf("payload shape invalid: %s", strings.Join(violations, "; "))
	}

	return nil
}
