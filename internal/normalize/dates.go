package normalize

import (
	"strings"

	"github.com/araddon/dateparse"
)

// Date normalizes a report date to YYYY-MM-DD. Ambiguous dates parse
// day-first ("01/02/2023" is 1 February), which is the convention on lab
// reports. An unparseable string comes back unchanged; the raw date is
// still useful for manual reconciliation, at the cost of weaker
// deduplication.
func Date(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	t, err := dateparse.ParseAny(raw, dateparse.PreferMonthFirst(false))
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}
