package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

// maxSuggestDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxSuggestDistance = 3

// knownKeys are the valid fully-qualified keys in the config file.
var knownKeys = map[string]bool{
	"watcher.max_watchers":          true,
	"watcher.quiet_interval":        true,
	"watcher.max_batches_per_cycle": true,
	"watcher.max_events_per_batch":  true,
	"watcher.discard_threshold":     true,
	"watcher.error_reset_threshold": true,
	"watcher.error_reset_cooldown":  true,
	"cache.existence_ttl":           true,
	"metadata.sidecar_name":         true,
	"index.path":                    true,
	"logging.log_level":             true,
	"logging.log_format":            true,
	"logging.log_file":              true,
	"logging.log_retention_days":    true,
}

// knownKeysList is the sorted slice form for edit-distance matching, sorted
// for deterministic suggestions when two candidates tie.
var knownKeysList = func() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with a "did you mean?" suggestion for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		keyStr := key.String()

		if suggestion := closestKnownKey(keyStr); suggestion != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q (did you mean %q?)", keyStr, suggestion))
		} else {
			errs = append(errs, fmt.Errorf("unknown config key %q", keyStr))
		}
	}

	return errors.Join(errs...)
}

// closestKnownKey returns the known key nearest to key within
// maxSuggestDistance, or "" when nothing is close enough.
func closestKnownKey(key string) string {
	best := ""
	bestDist := maxSuggestDistance + 1

	for _, candidate := range knownKeysList {
		if d := levenshtein(key, candidate); d < bestDist {
			best = candidate
			bestDist = d
		}
	}

	return best
}

// levenshtein computes the edit distance between two strings using the
// two-row dynamic programming formulation.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i

		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
