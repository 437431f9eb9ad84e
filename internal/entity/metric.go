package entity

import (
	"encoding/json"
	"time"
)

// RawCandidate is one parsed-but-not-yet-validated JSON line from the model
// stream. The value is kept as raw JSON because the model emits numbers,
// strings, and nulls interchangeably.
type RawCandidate struct {
	TestName       string          `json:"test_name"`
	Value          json.RawMessage `json:"value"`
	Unit           string          `json:"unit,omitempty"`
	ReferenceRange string          `json:"reference_range,omitempty"`
	ReportDate     string          `json:"report_date,omitempty"`
}

// ValueString renders the raw value for normalization. A JSON null, a missing
// value, or an empty string all come back as "".
func (c RawCandidate) ValueString() string {
	if len(c.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.Value, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(c.Value, &f); err == nil {
		// Re-marshal so 5.4 stays "5.4" and 98 stays "98".
		b, _ := json.Marshal(f)
		return string(b)
	}
	return ""
}

// Metric is the canonical, persisted measurement. The tuple
// (TestName, Value, Unit, ReportDate) is the deduplication key.
type Metric struct {
	ID             int64     `json:"id"`
	TestName       string    `json:"test_name"`
	Value          string    `json:"value"`
	Unit           string    `json:"unit"`
	ReferenceRange string    `json:"reference_range"`
	ReportDate     string    `json:"report_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProcessedFile is one row of the append-only ingestion audit log.
type ProcessedFile struct {
	ID                  int64     `json:"id"`
	Filename            string    `json:"filename"`
	Status              string    `json:"status"`
	DataPointsExtracted int       `json:"data_points_extracted"`
	ReportDate          string    `json:"report_date"`
	UploadDate          time.Time `json:"upload_date"`
}
