package encoding_test

import (
	"testing"

	"github.com/effective-security/mcpbridge/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_JSON_Encoding(t *testing.T) {
	e, err := encoding.PredefinedSchemaEncoder(encoding.ModeJSON, AlertQuery{})
	require.NoError(t, err)

	exp := `
Respond with JSON in the following JSON schema:
` + "```json" + `
{
	"properties": {
		"state": {
			"type": "string",
			"title": "State",
			"description": "Two-letter US state code",
			"examples": [
				"TX"
			]
		},
		"area": {
			"type": "string",
			"title": "Area",
			"description": "Area or county to filter alerts",
			"examples": [
				"Travis County"
			]
		},
		"severity": {
			"type": "string",
			"enum": [
				"minor",
				"moderate",
				"severe"
			],
			"title": "Severity",
			"description": "Minimum alert severity",
			"default": "minor"
		}
	},
	"type": "object",
	"required": [
		"state",
		"area",
		"severity"
	]
}
` + "```" + `
Make sure to return an instance of the JSON, not the schema itself.
Use the exact field names as they are defined in the schema.
`

	assert.Equal(t, exp, string(e.GetFormatInstructions()))
}

func Test_YAML_Encoding(t *testing.T) {
	e, err := encoding.PredefinedSchemaEncoder(encoding.ModeYAML, AlertQuery{})
	require.NoError(t, err)

	exp := `
Respond with YAML in the following YAML schema without comments:
` + "```yaml" + `
state: TX
area: Travis County
severity: minor
` + "```" + `
Make sure to return an instance of the YAML, not the schema itself.
`

	assert.Equal(t, exp, string(e.GetFormatInstructions()))
}

func Test_TOML_Encoding(t *testing.T) {
	e, err := encoding.PredefinedSchemaEncoder(encoding.ModeTOML, AlertQuery{})
	require.NoError(t, err)

	exp := `
Respond with TOML in the following TOML schema:
` + "```toml" + `
State = "TX"
Area = "Travis County"
Severity = "minor"
` + "```" + `
Make sure to return an instance of the TOML, not the schema itself.
`

	assert.Equal(t, exp, string(e.GetFormatInstructions()))
}

type AlertSeverity string

const (
	SeverityMinor    AlertSeverity = "minor"
	SeverityModerate AlertSeverity = "moderate"
	SeveritySevere   AlertSeverity = "severe"
)

type AlertQuery struct {
	State    string        `json:"state" jsonschema:"title=State,description=Two-letter US state code,example=TX" fake:"TX"`
	Area     string        `json:"area" jsonschema:"title=Area,description=Area or county to filter alerts,example=Travis County" fake:"Travis County"`
	Severity AlertSeverity `json:"severity"  jsonschema:"title=Severity,description=Minimum alert severity,default=minor,enum=minor,enum=moderate,enum=severe" fake:"minor"`
}
