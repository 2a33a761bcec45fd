package ovd

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout is the canonical report date format.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order; unambiguous ISO forms first.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02.01.2006",
	"01-02-06",
	"1/2/2006",
	"1/2/06",
	"2 Jan 2006",
	"Jan 2, 2006",
}

var (
	errNotNumber = errors.New("invalid number")
	errNegative  = errors.New("negative amount")
	errNotDate   = errors.New("invalid date")
)

// parseAmount parses a consumption cell. Thousands separators and spaces
// are tolerated; negative values are rejected.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, errNotNumber
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errNotNumber
	}
	if v < 0 {
		return 0, errNegative
	}
	return v, nil
}

// parseDate accepts the layouts above and raw Excel serial day numbers.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errNotDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return truncateDay(t), nil
		}
	}
	return time.Time{}, errNotDate
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// formatAmount writes the shortest decimal that parses back to v exactly.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NormalizeDate returns s as YYYY-MM-DD, or "" when it is not a date.
func NormalizeDate(s string) string {
	t, err := parseDate(s)
	if err != nil {
		return ""
	}
	return t.Format(DateLayout)
}
