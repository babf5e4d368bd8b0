package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Donor-data exports carry dates in wildly inconsistent shapes: ISO, US and
// EU slash forms, spelled-out months, Excel serial numbers, fiscal-year
// tokens and "Class of YYYY" graduation markers. ParseDate resolves them in
// a fixed precedence order so a value never silently changes meaning when a
// later rule would also have matched.

type DateOptions struct {
	// Format is an explicit Go layout tried before the common-format list.
	Format string
	// FiscalYearStart is the first month of the fiscal year. FY2024 with a
	// July start resolves to 2023-07-01.
	FiscalYearStart  time.Month
	AllowPartial     bool
	AllowExcelSerial bool
}

var (
	excelSerialRe = regexp.MustCompile(`^\d{5}$`)
	fiscalYearRe  = regexp.MustCompile(`^FY(\d{4})$`)
	classOfRe     = regexp.MustCompile(`^[Cc]lass [Oo]f (\d{4})$`)
	yearOnlyRe    = regexp.MustCompile(`^\d{4}$`)
	slashDateRe   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
)

// excelEpoch is the Lotus/Excel day-zero. Serial 1 is 1900-01-01, and the
// epoch sits two days earlier to absorb Excel's phantom 1900 leap day.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var commonLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// ParseDate parses a heterogeneous date string into a UTC calendar date.
// The boolean is false when no rule matched or the result fell outside
// [1900, 2100], which guards against misparsed two-digit years.
func ParseDate(value string, opts DateOptions) (time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, false
	}
	if opts.FiscalYearStart == 0 {
		opts.FiscalYearStart = time.July
	}

	// Bare digit strings are only dates under an explicit opt-in; the
	// fallback parser must never get a chance to guess at them.
	if excelSerialRe.MatchString(s) {
		if !opts.AllowExcelSerial {
			return time.Time{}, false
		}
		days, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, false
		}
		return checkRange(excelEpoch.AddDate(0, 0, days))
	}

	if m := fiscalYearRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return checkRange(time.Date(year-1, opts.FiscalYearStart, 1, 0, 0, 0, 0, time.UTC))
	}

	if m := classOfRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return checkRange(time.Date(year, time.May, 1, 0, 0, 0, 0, time.UTC))
	}

	if yearOnlyRe.MatchString(s) {
		if !opts.AllowPartial {
			return time.Time{}, false
		}
		year, _ := strconv.Atoi(s)
		return checkRange(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
	}

	if opts.Format != "" {
		if t, err := time.ParseInLocation(opts.Format, s, time.UTC); err == nil {
			return checkRange(t)
		}
	}

	if t, ok := parseSlashDate(s); ok {
		return checkRange(t)
	}

	for _, layout := range commonLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return checkRange(t)
		}
	}

	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return checkRange(t)
	}

	return time.Time{}, false
}

// parseSlashDate resolves the DD/MM vs MM/DD ambiguity: a component above 12
// pins the day position, otherwise US order wins. Column-level ambiguity is
// surfaced by DetectDateFormat, not here.
func parseSlashDate(s string) (time.Time, bool) {
	m := slashDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	first, _ := strconv.Atoi(m[1])
	second, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	month, day := first, second
	if first > 12 && second <= 12 {
		month, day = second, first
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject rollovers like 02/31.
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}

func checkRange(t time.Time) (time.Time, bool) {
	if t.Year() < 1900 || t.Year() > 2100 {
		return time.Time{}, false
	}
	return t, true
}

// DateFormatDetection classifies the dominant format of a column sample.
type DateFormatDetection struct {
	Format     string
	Confidence float64
	Ambiguous  bool
}

const (
	FormatISO         = "iso"
	FormatUSSlash     = "us_slash"
	FormatEUSlash     = "eu_slash"
	FormatMonthName   = "month_name"
	FormatExcelSerial = "excel_serial"
	FormatFiscalYear  = "fiscal_year"
	FormatClassYear   = "class_year"
	FormatYearOnly    = "year_only"
	FormatUnknown     = "unknown"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// DetectDateFormat classifies each sample independently, picks the most
// frequent format, and reports confidence as the fraction of samples in that
// format weighted by their per-sample confidence. Ambiguous is set when any
// sample could be read as either MM/DD or DD/MM.
func DetectDateFormat(samples []string) DateFormatDetection {
	if len(samples) == 0 {
		return DateFormatDetection{Format: FormatUnknown}
	}

	counts := make(map[string]int)
	confidence := make(map[string]float64)
	anyAmbiguous := false

	for _, sample := range samples {
		format, conf, ambiguous := classifyDateSample(strings.TrimSpace(sample))
		counts[format]++
		confidence[format] += conf
		if ambiguous {
			anyAmbiguous = true
		}
	}

	best := FormatUnknown
	bestCount := 0
	for format, count := range counts {
		if format == FormatUnknown {
			continue
		}
		if count > bestCount {
			best = format
			bestCount = count
		}
	}
	if best == FormatUnknown {
		return DateFormatDetection{Format: FormatUnknown, Ambiguous: anyAmbiguous}
	}

	fraction := float64(bestCount) / float64(len(samples))
	avgConf := confidence[best] / float64(bestCount)
	return DateFormatDetection{
		Format:     best,
		Confidence: fraction * avgConf,
		Ambiguous:  anyAmbiguous,
	}
}

func classifyDateSample(s string) (format string, confidence float64, ambiguous bool) {
	switch {
	case s == "":
		return FormatUnknown, 0, false
	case isoDateRe.MatchString(s):
		return FormatISO, 1.0, false
	case fiscalYearRe.MatchString(s):
		return FormatFiscalYear, 1.0, false
	case classOfRe.MatchString(s):
		return FormatClassYear, 1.0, false
	case excelSerialRe.MatchString(s):
		return FormatExcelSerial, 1.0, false
	case yearOnlyRe.MatchString(s):
		return FormatYearOnly, 1.0, false
	}

	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		switch {
		case first > 12 && second <= 12:
			return FormatEUSlash, 1.0, false
		case second > 12 && first <= 12:
			return FormatUSSlash, 1.0, false
		default:
			// Both components could be a month. Default to US order with
			// reduced confidence.
			return FormatUSSlash, 0.5, true
		}
	}

	for _, layout := range []string{"January 2, 2006", "Jan 2, 2006", "2 January 2006"} {
		if _, err := time.Parse(layout, s); err == nil {
			return FormatMonthName, 1.0, false
		}
	}

	return FormatUnknown, 0, false
}
