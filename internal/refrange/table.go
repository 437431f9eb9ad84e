package refrange

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
)

// StandardTable is the process-wide authoritative mapping from canonical
// test name to reference-range string. Loaded once at startup, read-only for
// the process lifetime; changing the file requires a restart.
type StandardTable struct {
	ranges map[string]string
}

// tableEntry mirrors the JSON file shape: {"Total Cholesterol": {"range": "<200"}}.
type tableEntry struct {
	Range string `json:"range"`
}

// LoadStandardTable reads the table from path. A missing file is tolerated
// and yields an empty table; a malformed file is an error.
func LoadStandardTable(path string, logger *slog.Logger) (*StandardTable, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("refrange.table_missing", "path", path)
		return &StandardTable{ranges: map[string]string{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var entries map[string]tableEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	ranges := make(map[string]string, len(entries))
	for name, e := range entries {
		if e.Range != "" {
			ranges[name] = e.Range
		}
	}
	logger.Info("refrange.table_loaded", "path", path, "entries", len(ranges))
	return &StandardTable{ranges: ranges}, nil
}

// Lookup matches exactly first, then case-insensitively.
func (t *StandardTable) Lookup(testName string) (string, bool) {
	if r, ok := t.ranges[testName]; ok {
		return r, true
	}
	lower := strings.ToLower(testName)
	for name, r := range t.ranges {
		if strings.ToLower(name) == lower {
			return r, true
		}
	}
	return "", false
}

// Len reports the number of entries, mostly for startup logging.
func (t *StandardTable) Len() int {
	return len(t.ranges)
}
