// Package normalize reduces raw extracted candidates to the canonical
// vocabulary: one spelling per test name, one unit per test family, one
// shape per reference range. A candidate either comes out canonical or is
// rejected with a reason; rejection is per-record and never fatal to the
// document.
package normalize

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/healthmetrics/extractor/internal/common"
	"github.com/healthmetrics/extractor/internal/entity"
)

// allowedCategorical are the non-numeric results worth keeping. Anything
// else non-numeric is model noise.
var allowedCategorical = map[string]struct{}{
	"negative": {},
	"positive": {},
	"normal":   {},
	"nil":      {},
	"absent":   {},
	"present":  {},
	"trace":    {},
	"male":     {},
	"female":   {},
}

type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Normalize validates and canonicalizes one candidate. The returned error
// wraps common.ErrRejected when the candidate fails the validation gate.
func (e *Engine) Normalize(c entity.RawCandidate) (entity.Metric, error) {
	value := strings.TrimSpace(c.ValueString())
	if value == "" || strings.EqualFold(value, "null") {
		e.logger.Debug("normalize.rejected", "test_name", c.TestName, "reason", "missing value")
		return entity.Metric{}, fmt.Errorf("%w: %q has no value", common.ErrRejected, c.TestName)
	}

	numeric, parseErr := strconv.ParseFloat(value, 64)
	isNumeric := parseErr == nil
	if !isNumeric {
		if _, ok := allowedCategorical[strings.ToLower(value)]; !ok {
			e.logger.Debug("normalize.rejected", "test_name", c.TestName, "value", value, "reason", "invalid value")
			return entity.Metric{}, fmt.Errorf("%w: %q has invalid value %q", common.ErrRejected, c.TestName, value)
		}
	}

	name := TestName(c.TestName)
	if name == "" {
		e.logger.Debug("normalize.rejected", "value", value, "reason", "missing test name")
		return entity.Metric{}, fmt.Errorf("%w: candidate has no test name", common.ErrRejected)
	}

	unit, conv, convertible := Unit(c.Unit, name)
	if convertible && isNumeric {
		// Unit rewriting happens only when value rewriting is safe.
		converted := math.Round(numeric*conv.Factor*10) / 10
		value = strconv.FormatFloat(converted, 'f', 1, 64)
		unit = conv.ToUnit
		e.logger.Debug("normalize.converted",
			"test_name", name,
			"from", fmt.Sprintf("%s %s", c.ValueString(), c.Unit),
			"to", fmt.Sprintf("%s %s", value, unit),
		)
	}

	return entity.Metric{
		TestName:       name,
		Value:          value,
		Unit:           unit,
		ReferenceRange: ReferenceRange(c.ReferenceRange),
		ReportDate:     Date(c.ReportDate),
	}, nil
}
