package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jgoulah/meterscraper/pkg/models"
)

var dayToken = regexp.MustCompile(`[\d/]{8,10}`)

// HalfHourExtractor reads the day shown on a half-hour graph page and the
// usage series embedded in the chart's initializer script
type HalfHourExtractor struct {
	DateSelector string
	DateIndex    int // Which of the matched cells holds the date
	ScriptMarker string
	SeriesLabel  string // First element of the embedded series array
}

func (h *HalfHourExtractor) seriesPattern() *regexp.Regexp {
	return regexp.MustCompile(`\[\[` + regexp.QuoteMeta(`"`+h.SeriesLabel+`"`) + `,\s*(.+?)\]\];`)
}

// Extract parses one snapshot. The number of intervals is not checked; see
// models.HalfHourUsage.Complete.
func (h *HalfHourExtractor) Extract(q Query, snapshot string) (*models.HalfHourUsage, error) {
	cells := q.SelectAll(snapshot, h.DateSelector)
	if len(cells) <= h.DateIndex {
		return nil, extractionFailed("no date header matching %q", h.DateSelector)
	}
	day := dayToken.FindString(cells[h.DateIndex])
	if day == "" {
		return nil, extractionFailed("no date in header %q", strings.TrimSpace(cells[h.DateIndex]))
	}

	script, ok := q.FindScriptContaining(snapshot, h.ScriptMarker)
	if !ok {
		return nil, extractionFailed("no script containing %q", h.ScriptMarker)
	}
	m := h.seriesPattern().FindStringSubmatch(script)
	if m == nil {
		return nil, extractionFailed("no %q series in chart script", h.SeriesLabel)
	}

	fields := strings.Split(m[1], ",")
	intervals := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, extractionFailed("slot %d: %v", i, err)
		}
		intervals = append(intervals, v)
	}

	return &models.HalfHourUsage{Day: day, Intervals: intervals}, nil
}
