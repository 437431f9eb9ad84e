package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/healthmetrics/extractor/internal/common"
	"github.com/healthmetrics/extractor/internal/entity"
)

func candidate(name, value, unit, refRange, date string) entity.RawCandidate {
	raw, _ := json.Marshal(value)
	return entity.RawCandidate{
		TestName:       name,
		Value:          raw,
		Unit:           unit,
		ReferenceRange: refRange,
		ReportDate:     date,
	}
}

func TestNormalize_ValidationGate(t *testing.T) {
	e := NewEngine(nil)

	// Explicit JSON null value.
	_, err := e.Normalize(entity.RawCandidate{TestName: "TSH", Value: json.RawMessage("null")})
	if !errors.Is(err, common.ErrRejected) {
		t.Errorf("null value: err = %v, want ErrRejected", err)
	}

	// Allow-listed categorical passes unchanged.
	m, err := e.Normalize(candidate("Urine Sugar", "positive", "", "", ""))
	if err != nil {
		t.Fatalf("categorical value rejected: %v", err)
	}
	if m.Value != "positive" {
		t.Errorf("value = %q, want positive", m.Value)
	}

	// Junk non-numeric value is rejected.
	_, err = e.Normalize(candidate("TSH", "banana", "", "", ""))
	if !errors.Is(err, common.ErrRejected) {
		t.Errorf("banana: err = %v, want ErrRejected", err)
	}

	// Missing test name is rejected.
	_, err = e.Normalize(candidate("", "5.4", "", "", ""))
	if !errors.Is(err, common.ErrRejected) {
		t.Errorf("empty name: err = %v, want ErrRejected", err)
	}
}

func TestNormalize_UnitConversion(t *testing.T) {
	e := NewEngine(nil)

	tests := []struct {
		name      string
		value     string
		unit      string
		wantValue string
		wantUnit  string
	}{
		// mmol/L × 38.67, rounded to one decimal.
		{"Total Cholesterol", "5.2", "mmol/L", "201.1", "mg/dL"},
		{"Cholesterol, Total", "5.2", "mmol/l", "201.1", "mg/dL"},
		// Triglycerides × 88.57.
		{"Triglycerides", "1.5", "mmol/L", "132.9", "mg/dL"},
		// Glucose × 18.02.
		{"Fasting Glucose", "5.5", "mmol/L", "99.1", "mg/dL"},
		// Cell counts ÷ 1000, substring unit match.
		{"Platelet Count", "250000", "cells/cumm", "250.0", "10^3/uL"},
		// Spelling normalized without conversion.
		{"Hemoglobin", "13.2", "g/dl", "13.2", "g/dL"},
		// Non-source unit: value untouched.
		{"Total Cholesterol", "200", "mg/dL", "200", "mg/dL"},
	}

	for _, tt := range tests {
		m, err := e.Normalize(candidate(tt.name, tt.value, tt.unit, "", ""))
		if err != nil {
			t.Errorf("%s: unexpected rejection: %v", tt.name, err)
			continue
		}
		if m.Value != tt.wantValue || m.Unit != tt.wantUnit {
			t.Errorf("%s %s %s -> %s %s, want %s %s",
				tt.name, tt.value, tt.unit, m.Value, m.Unit, tt.wantValue, tt.wantUnit)
		}
	}
}

func TestNormalize_ConversionSkippedForNonNumericValue(t *testing.T) {
	e := NewEngine(nil)

	m, err := e.Normalize(candidate("Fasting Glucose", "normal", "mmol/L", "", ""))
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if m.Value != "normal" {
		t.Errorf("value = %q, want normal", m.Value)
	}
	if m.Unit == "mg/dL" {
		t.Errorf("unit must not be rewritten when the value cannot be converted, got %q", m.Unit)
	}
}

func TestNormalize_NumericJSONValue(t *testing.T) {
	e := NewEngine(nil)

	m, err := e.Normalize(entity.RawCandidate{
		TestName: "HbA1c",
		Value:    json.RawMessage("5.4"),
	})
	if err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if m.Value != "5.4" {
		t.Errorf("value = %q, want 5.4", m.Value)
	}
}

func TestTestName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Cholesterol, Total", "Total Cholesterol"},
		{"Vitamin D Total-25 Hydroxy", "Vitamin D"},
		{"25-hydroxy VITAMIN D", "Vitamin D"},
		{"Glycated Hemoglobin (HbA1c)", "HbA1c"},
		{"Serum Calcium, total", "Calcium Total"},
		{"  Lipase  ", "Lipase"},
	}
	for _, tt := range tests {
		if got := TestName(tt.in); got != tt.want {
			t.Errorf("TestName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReferenceRange(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Optimal : <100", "<100"},
		{"[4.00-5.60]", "4-5.6"},
		{"-", ""},
		{"--", ""},
		{"None", ""},
		{"null", ""},
		{"", ""},
		{"< 5", "<5"},
		{"13 - 17 g/dL", "13-17"},
		{"0-20 mm/hr", "0-20"},
		{"<150 mg/dL", "<150"},
		{"4.0  -  11.0", "4-11"},
		{"Desirable: <150", "<150"},
	}
	for _, tt := range tests {
		if got := ReferenceRange(tt.in); got != tt.want {
			t.Errorf("ReferenceRange(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"2023-06-15", "2023-06-15"},
		{"15/06/2023", "2023-06-15"},
		// Day-first convention for ambiguous dates.
		{"01/02/2023", "2023-02-01"},
		{"15 Jan 2024", "2024-01-15"},
		// Unparseable input passes through unchanged.
		{"sometime last year", "sometime last year"},
	}
	for _, tt := range tests {
		if got := Date(tt.in); got != tt.want {
			t.Errorf("Date(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
