package scraper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jgoulah/meterscraper/pkg/models"
)

// MonthlyExtractor turns a monthly usage page into records
type MonthlyExtractor interface {
	ExtractMonthly(q Query, snapshot string) ([]models.MonthlyUsage, error)
}

// gridRows is the number of body rows per year block: billable days, usage, payment
const gridRows = 3

// GridExtractor reads a table whose header row lists the months and whose
// body rows hold days, usage and payment, one block of rows per year
type GridExtractor struct {
	HeaderSelector string
	CellSelector   string
	// Positions of header and body cells that are row labels, not data
	HeaderSkip []int
	CellSkip   []int
	// MonthsPerBlock is the number of month columns per year block
	MonthsPerBlock int
}

func (g *GridExtractor) ExtractMonthly(q Query, snapshot string) ([]models.MonthlyUsage, error) {
	headers := discard(q.SelectAll(snapshot, g.HeaderSelector), g.HeaderSkip)
	cells := discard(q.SelectAll(snapshot, g.CellSelector), g.CellSkip)

	if len(headers) == 0 {
		return nil, extractionFailed("no month headers matching %q", g.HeaderSelector)
	}
	if len(cells) == 0 {
		return nil, extractionFailed("no usage cells matching %q", g.CellSelector)
	}

	per := g.MonthsPerBlock
	if per <= 0 {
		per = 12
	}
	if len(headers)%per != 0 {
		return nil, extractionFailed("%d month headers is not a whole number of %d-month blocks", len(headers), per)
	}
	if len(cells) != len(headers)*gridRows {
		return nil, extractionFailed("%d usage cells for %d months, want %d", len(cells), len(headers), len(headers)*gridRows)
	}

	records := make([]models.MonthlyUsage, 0, len(headers))
	for i, header := range headers {
		base := (i / per) * per * gridRows
		col := i % per

		days, err := parseCount(cells[base+col])
		if err != nil {
			return nil, extractionFailed("month %d days: %v", i, err)
		}
		kwh, err := parseAmount(cells[base+per+col])
		if err != nil {
			return nil, extractionFailed("month %d usage: %v", i, err)
		}
		payment, err := parseAmount(cells[base+2*per+col])
		if err != nil {
			return nil, extractionFailed("month %d payment: %v", i, err)
		}

		records = append(records, models.MonthlyUsage{
			Period:       strings.TrimSpace(header),
			BillableDays: days,
			KWh:          kwh,
			Payment:      payment,
		})
	}

	return records, nil
}

// ChartLabelExtractor reads month numbers from chart axis labels and
// payments from a separate list covering the current and previous cycle.
// The labels carry no year, so years are inferred from the stated current
// year and from where the labels wrap from December back to January.
type ChartLabelExtractor struct {
	YearSelector   string
	LabelSelector  string
	FigureSelector string
	// StartYear picks the year of the first label. Defaults to
	// DefaultStartYear.
	StartYear func(currentYear, firstMonth int) int
}

// DefaultStartYear places the first label two years before the current year
// when the labels start in January and three years before otherwise. It
// matches the portal's layout as observed, not a documented rule.
func DefaultStartYear(currentYear, firstMonth int) int {
	if firstMonth == 1 {
		return currentYear - 2
	}
	return currentYear - 3
}

func (c *ChartLabelExtractor) ExtractMonthly(q Query, snapshot string) ([]models.MonthlyUsage, error) {
	yearTexts := q.SelectAll(snapshot, c.YearSelector)
	if len(yearTexts) == 0 {
		return nil, extractionFailed("no current year matching %q", c.YearSelector)
	}
	currentYear, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(yearTexts[0]), "年"))
	if err != nil {
		return nil, extractionFailed("current year %q: %v", yearTexts[0], err)
	}

	labelTexts := q.SelectAll(snapshot, c.LabelSelector)
	figures := q.SelectAll(snapshot, c.FigureSelector)
	if len(labelTexts) == 0 {
		return nil, extractionFailed("no month labels matching %q", c.LabelSelector)
	}
	if len(figures) == 0 {
		return nil, extractionFailed("no figures matching %q", c.FigureSelector)
	}
	if len(figures) != 2*len(labelTexts) {
		return nil, extractionFailed("%d figures for %d month labels, want %d", len(figures), len(labelTexts), 2*len(labelTexts))
	}

	months := make([]int, len(labelTexts))
	for i, text := range labelTexts {
		m, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(text), "月"))
		if err != nil || m < 1 || m > 12 {
			return nil, extractionFailed("month label %q", text)
		}
		months[i] = m
	}

	startYear := c.StartYear
	if startYear == nil {
		startYear = DefaultStartYear
	}

	// Figures list the current cycle first; emit the previous one first so
	// the result is chronological
	n := len(months)
	ordered := append(append([]string{}, figures[n:]...), figures[:n]...)

	year := startYear(currentYear, months[0])
	records := make([]models.MonthlyUsage, 0, 2*n)
	for i, figure := range ordered {
		month := months[i%n]
		if i > 0 && month < months[(i-1)%n] {
			year++
		}

		payment, err := parseAmount(figure)
		if err != nil {
			return nil, extractionFailed("%d/%d payment: %v", year, month, err)
		}

		records = append(records, models.MonthlyUsage{
			Period:  fmt.Sprintf("%d/%d", year, month),
			Payment: payment,
		})
	}

	return records, nil
}
