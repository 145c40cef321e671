package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownSections maps each config section to its valid keys.
var knownSections = map[string]map[string]bool{
	"graph": {
		"tenant_id": true, "client_id": true, "client_secret": true,
		"drive_id": true, "customer_root": true, "base_url": true, "authority_url": true,
	},
	"smtp": {
		"host": true, "port": true, "username": true, "password": true,
		"sender": true, "sender_name": true, "max_message_size": true,
	},
	"store": {
		"backend": true, "path": true, "admin_password": true,
	},
	"slack": {
		"webhook_url": true,
	},
	"uploads": {
		"workers": true, "max_image_size": true, "folder_cache_ttl": true,
	},
	"network": {
		"timeout": true,
	},
	"logging": {
		"log_level": true, "log_format": true,
	},
}

// sectionNames is the sorted list of section names for Levenshtein matching.
var sectionNames = func() []string {
	names := make([]string, 0, len(knownSections))
	for name := range knownSections {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		if err := buildKeyError(key.String()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for an unknown key, optionally
// suggesting the closest known section or key.
func buildKeyError(keyStr string) error {
	parts := strings.SplitN(keyStr, ".", 2)
	section := parts[0]

	keys, ok := knownSections[section]
	if !ok {
		suggestion := closestMatch(section, sectionNames)
		if suggestion != "" {
			return fmt.Errorf("unknown config section %q — did you mean %q?", section, suggestion)
		}

		return fmt.Errorf("unknown config section %q", section)
	}

	if len(parts) == 1 {
		// A bare known section name is valid even when empty.
		return nil
	}

	field := parts[1]

	known := make([]string, 0, len(keys))
	for k := range keys {
		known = append(known, k)
	}

	sort.Strings(known)

	suggestion := closestMatch(field, known)
	if suggestion != "" {
		return fmt.Errorf("unknown key %q in [%s] — did you mean %q?", field, section, suggestion)
	}

	return fmt.Errorf("unknown key %q in [%s]", field, section)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// Use single-row optimization to avoid allocating a full matrix.
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
