package scraper

import (
	"fmt"
	"strconv"
	"strings"
)

var unitSuffixes = []string{"kwh", "円", "日", "m3", "㎥"}

// isSentinel reports whether a cell is the portal's "no data" placeholder
// (a run of dashes) or blank
func isSentinel(s string) bool {
	return strings.Trim(strings.TrimSpace(s), "-ー－") == ""
}

// cleanNumber strips separators, currency marks and unit suffixes
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ToLower(s)
	s = strings.TrimLeft(s, "¥￥")
	for _, unit := range unitSuffixes {
		s = strings.TrimSuffix(s, unit)
	}
	return strings.TrimSpace(s)
}

// parseAmount parses a figure like "1,234.5kWh". Sentinels give nil.
func parseAmount(s string) (*float64, error) {
	if isSentinel(s) {
		return nil, nil
	}

	v, err := strconv.ParseFloat(cleanNumber(s), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return &v, nil
}

// parseCount parses a whole number like "31日". Sentinels give nil.
func parseCount(s string) (*int, error) {
	if isSentinel(s) {
		return nil, nil
	}

	v, err := strconv.Atoi(cleanNumber(s))
	if err != nil {
		return nil, fmt.Errorf("parsing count %q: %w", s, err)
	}
	return &v, nil
}

// discard drops the items at the given positions
func discard(items []string, positions []int) []string {
	skip := make(map[int]bool, len(positions))
	for _, p := range positions {
		skip[p] = true
	}

	kept := make([]string, 0, len(items))
	for i, item := range items {
		if !skip[i] {
			kept = append(kept, item)
		}
	}
	return kept
}
