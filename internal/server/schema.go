package server

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// metricSchemaJSON constrains the /metrics ingest payload. The pipeline's
// validation gate judges content; this only rejects structurally hopeless
// payloads before they reach it.
const metricSchemaJSON = `{
	"type": "object",
	"properties": {
		"test_name": {"type": ["string", "null"]},
		"value": {"type": ["string", "number", "null"]},
		"unit": {"type": ["string", "null"]},
		"reference_range": {"type": ["string", "null"]},
		"report_date": {"type": ["string", "null"]}
	},
	"required": ["test_name", "value"],
	"additionalProperties": false
}`

func compileMetricSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("metric.json", strings.NewReader(metricSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add metric schema: %w", err)
	}
	return c.Compile("metric.json")
}
