package normalize

import (
	"regexp"
	"strings"
)

var (
	reBrackets = regexp.MustCompile(`[\[\]()]`)
	// Leading label like "Optimal :" or "Desirable:".
	reLabelPrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z ]*\s*:\s*`)
	// Unit suffixes that leak into extracted ranges.
	reUnitSuffix = regexp.MustCompile(`(?i)\s*(mg/dl|g/dl|gm/dl|ng/ml|pg/ml|iu/l|u/l|µiu/ml|mm/h|mm/hr|mmol/l|sec|%)\s*$`)
	// Decimal noise: 4.00 -> 4, 5.60 -> 5.6.
	reTrailingZeros = regexp.MustCompile(`(\.\d*?)0+(\D|$)`)
	reBareDot       = regexp.MustCompile(`(\d)\.(\D|$)`)
	// Operator and hyphen spacing: "< 5" -> "<5", "4 - 5" -> "4-5".
	reOpSpace     = regexp.MustCompile(`([<>]=?)\s+`)
	reHyphenSpace = regexp.MustCompile(`\s*-\s*`)
	reWhitespace  = regexp.MustCompile(`\s+`)
)

// degenerateRanges canonicalize to the empty string.
var degenerateRanges = map[string]struct{}{
	"":     {},
	"-":    {},
	"--":   {},
	"none": {},
	"null": {},
}

// ReferenceRange canonicalizes an extracted reference-range string:
// "Optimal : <100" -> "<100", "[4.00-5.60]" -> "4-5.6", "-" -> "".
func ReferenceRange(r string) string {
	r = strings.TrimSpace(r)
	if isDegenerateRange(r) {
		return ""
	}

	r = reBrackets.ReplaceAllString(r, "")
	r = reLabelPrefix.ReplaceAllString(r, "")
	r = reUnitSuffix.ReplaceAllString(r, "")
	r = reTrailingZeros.ReplaceAllString(r, "$1$2")
	r = reBareDot.ReplaceAllString(r, "$1$2")
	r = reOpSpace.ReplaceAllString(r, "$1")
	r = reHyphenSpace.ReplaceAllString(r, "-")
	r = reWhitespace.ReplaceAllString(r, " ")
	r = strings.TrimSpace(r)

	if isDegenerateRange(r) {
		return ""
	}
	return r
}

func isDegenerateRange(r string) bool {
	_, ok := degenerateRanges[strings.ToLower(r)]
	return ok
}
