package filter

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// LoadPatterns reads a glob pattern list from a JSON file. Comments and
// trailing commas are tolerated, so the file can carry notes on why a
// path is included or excluded.
func LoadPatterns(path string) ([]string, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // operator-chosen pattern file
	if err != nil {
		return nil, fmt.Errorf("pattern file: %w", err)
	}

	var patterns []string
	if err := json.Unmarshal(jsonc.ToJSON(raw), &patterns); err != nil {
		return nil, fmt.Errorf("pattern file %q: %w", path, err)
	}

	return patterns, nil
}
