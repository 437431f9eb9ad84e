package normalize

import "strings"

// testNameAliases maps observed spellings to the canonical vocabulary.
// Exact match wins before any keyword rule runs.
var testNameAliases = map[string]string{
	"Cholesterol":              "Total Cholesterol",
	"Cholesterol, Total":       "Total Cholesterol",
	"Cholesterol Total":        "Total Cholesterol",
	"ERYTHROCYTE SEDIMENTATION RATE (ESR)":                    "ESR",
	"Erythrocyte Sedimentation Rate (Modified Westergren)":    "ESR",
	"LDL Cholesterol,Direct":      "LDL Cholesterol",
	"GLUCOSE, FASTING (F), PLASMA": "Fasting Glucose",
	"Glucose-Fasting":             "Fasting Glucose",
	"Bilirubin - Direct":          "Direct Bilirubin",
	"Bilirubin-Total":             "Total Bilirubin",
	"Serum SGPT/ALT":              "SGPT/ALT",
	"SGOT/AST":                    "SGOT/AST",
	"Serum Uric Acid":             "Uric Acid",
	"Serium URIC ACID":            "Uric Acid",
	"Serum Albumin":               "Albumin",
	"Serum Globulin":              "Globulin",
	"VITAMIN B-12":                "Vitamin B12",
	"VITAMIN D":                   "Vitamin D",
	"Vitamin D Total-25 Hydroxy":  "Vitamin D",
	"25-OH Vitamin D (Total)":     "Vitamin D",
}

// keywordRule canonicalizes a family of spellings the alias table cannot
// enumerate. Rules run in order; the first match wins.
type keywordRule struct {
	canonical string
	match     func(lower string) bool
}

var keywordRules = []keywordRule{
	{
		canonical: "Vitamin D",
		match: func(s string) bool {
			return strings.Contains(s, "vitamin d") &&
				(strings.Contains(s, "total") || strings.Contains(s, "25") || strings.Contains(s, "hydroxy"))
		},
	},
	{
		canonical: "HbA1c",
		match:     func(s string) bool { return strings.Contains(s, "hba1c") },
	},
	{
		canonical: "Calcium Total",
		match: func(s string) bool {
			return strings.Contains(s, "calcium") && strings.Contains(s, "total")
		},
	},
}

// TestName returns the canonical test name. Unmatched names pass through
// trimmed but otherwise unchanged.
func TestName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}

	if canonical, ok := testNameAliases[name]; ok {
		return canonical
	}

	lower := strings.ToLower(name)
	for _, rule := range keywordRules {
		if rule.match(lower) {
			return rule.canonical
		}
	}
	return name
}
