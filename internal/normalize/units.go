package normalize

import "strings"

// unitSpellings standardizes unit spelling (case-insensitive lookup).
var unitSpellings = map[string]string{
	"mg/dl":      "mg/dL",
	"u/l":        "U/L",
	"iu/l":       "IU/L",
	"gm/dl":      "g/dL",
	"g/dl":       "g/dL",
	"mm/hr":      "mm/h",
	"mm/1sthour": "mm/h",
	"ng/ml":      "ng/mL",
	"pg/ml":      "pg/mL",
	"ug/dl":      "µg/dL",
	"µiu/ml":     "µIU/mL",
	"kg/m^2":     "kg/m²",
	"kg/m2":      "kg/m²",
}

// Conversion rewrites a value and unit together. Substring source matching
// covers the cell-count spellings ("cells/cumm", "/cumm", "cells / cumm")
// that never agree between labs.
type Conversion struct {
	FromUnit  string
	ToUnit    string
	Factor    float64
	Substring bool
}

// conversions registers per-test value conversions, keyed by canonical test
// name. Cholesterol-family and glucose results arrive in mmol/L from some
// labs and must land in mg/dL; cell counts arrive in cells/cumm and land in
// 10^3/uL.
var conversions = map[string]Conversion{
	"Total Cholesterol":   {FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 38.67},
	"LDL Cholesterol":     {FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 38.67},
	"HDL Cholesterol":     {FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 38.67},
	"VLDL Cholesterol":    {FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 38.67},
	"Non-HDL Cholesterol": {FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 38.67},
	"Triglycerides":       {FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 88.57},
	"Fasting Glucose":     {FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 18.02},
	"Glucose":             {FromUnit: "mmol/L", ToUnit: "mg/dL", Factor: 18.02},

	"WBC":                   {FromUnit: "cumm", ToUnit: "10^3/uL", Factor: 0.001, Substring: true},
	"Total Leukocyte Count": {FromUnit: "cumm", ToUnit: "10^3/uL", Factor: 0.001, Substring: true},
	"Platelet Count":        {FromUnit: "cumm", ToUnit: "10^3/uL", Factor: 0.001, Substring: true},
}

// Unit standardizes the unit spelling and reports the registered conversion
// for the canonical test name, if its source unit matches the observed one.
func Unit(unit, testName string) (normalized string, conv Conversion, convertible bool) {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return unit, Conversion{}, false
	}

	normalized = unit
	if std, ok := unitSpellings[strings.ToLower(unit)]; ok {
		normalized = std
	}

	c, ok := conversions[testName]
	if !ok {
		return normalized, Conversion{}, false
	}

	lower := strings.ToLower(unit)
	from := strings.ToLower(c.FromUnit)
	if c.Substring {
		convertible = strings.Contains(lower, from)
	} else {
		convertible = lower == from
	}
	if !convertible {
		return normalized, Conversion{}, false
	}
	return normalized, c, true
}
