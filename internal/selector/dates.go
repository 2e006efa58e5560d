package selector

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"trackscrape/internal/definition"

	"github.com/araddon/dateparse"
)

var strptimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'e': "_2",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'z': "-0700",
	'Z': "MST",
	'j': "002",
	'T': "15:04:05",
	'R': "15:04",
	'D': "01/02/06",
	'F': "2006-01-02",
	'%': "%",
}

// GoLayout converts a strptime layout (`%Y-%m-%d`) to a Go reference layout, a layout
// without directives is assumed to be a Go layout already.
func GoLayout(layout string) (string, error) {
	if !strings.Contains(layout, "%") {
		return layout, nil
	}
	var out strings.Builder
	for i := 0; i < len(layout); i++ {
		if layout[i] != '%' {
			out.WriteByte(layout[i])
			continue
		}
		if i+1 >= len(layout) {
			return "", fmt.Errorf("%w: dangling %% in %q", ErrFilterArgs, layout)
		}
		i++
		directive, ok := strptimeDirectives[layout[i]]
		if !ok {
			return "", fmt.Errorf("%w: unsupported directive %%%c", ErrFilterArgs, layout[i])
		}
		out.WriteString(directive)
	}
	return out.String(), nil
}

func (p Pipeline) format(t time.Time) string {
	return t.In(p.clock.Location()).Format(time.RFC3339)
}

// parseLayout parses with a layout in the clock's location, dates without a year are
// placed in the last twelve months.
func (p Pipeline) parseLayout(value, layout string) (time.Time, error) {
	goLayout, err := GoLayout(layout)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(goLayout, strings.TrimSpace(value), p.clock.Location())
	if err != nil {
		return time.Time{}, err
	}
	if t.Year() == 0 {
		now := p.clock.Now()
		t = t.AddDate(now.Year(), 0, 0)
		if t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
	}
	return t, nil
}

func (p Pipeline) degrade(value string, err error) (string, error) {
	p.tel.ReportWarning(report_date_unparsable, value, err)
	return value, nil
}

func filterDateparse(p Pipeline, value string, f definition.Filter) (string, error) {
	if f.Arg(0) == "" {
		t, err := dateparse.ParseIn(strings.TrimSpace(value), p.clock.Location())
		if err != nil {
			return p.degrade(value, err)
		}
		return p.format(t), nil
	}
	t, err := p.parseLayout(value, f.Arg(0))
	if err != nil {
		return p.degrade(value, err)
	}
	return p.format(t), nil
}

var (
	relativeUnitRegex = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(years?|yrs?|y|months?|mos?|weeks?|wks?|w|days?|d|hours?|hrs?|h|minutes?|mins?|m|seconds?|secs?|s)\b`)
	clockRegex        = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})(?::(\d{2}))?\s*(am|pm)?`)
)

// ParseRelative resolves expressions like `3 hours ago` or `1 week, 2 days` against now.
func ParseRelative(value string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(value))
	switch lower {
	case "now", "just now", "moments ago", "a moment ago":
		return now, true
	}

	matches := relativeUnitRegex.FindAllStringSubmatch(lower, -1)
	if len(matches) == 0 {
		return time.Time{}, false
	}

	sign := -1.0
	if strings.HasPrefix(lower, "in ") || strings.Contains(lower, "from now") {
		sign = 1
	}

	t := now
	for _, match := range matches {
		amount, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
		if err != nil {
			return time.Time{}, false
		}
		amount *= sign

		unit := match[2]
		switch {
		case strings.HasPrefix(unit, "y"):
			t = t.AddDate(int(math.Round(amount)), 0, 0)
		case strings.HasPrefix(unit, "mo"):
			t = t.AddDate(0, int(math.Round(amount)), 0)
		case strings.HasPrefix(unit, "w"):
			t = t.Add(time.Duration(amount * 7 * 24 * float64(time.Hour)))
		case strings.HasPrefix(unit, "d"):
			t = t.Add(time.Duration(amount * 24 * float64(time.Hour)))
		case strings.HasPrefix(unit, "h"):
			t = t.Add(time.Duration(amount * float64(time.Hour)))
		case strings.HasPrefix(unit, "m"):
			t = t.Add(time.Duration(amount * float64(time.Minute)))
		case strings.HasPrefix(unit, "s"):
			t = t.Add(time.Duration(amount * float64(time.Second)))
		}
	}
	return t, true
}

var dayWords = []struct {
	word   string
	offset int
}{
	{"today", 0},
	{"yesterday", -1},
	{"tomorrow", 1},
}

// dayOffset recognizes today/yesterday/tomorrow, it returns the rest of the value.
func dayOffset(value string) (int, string, bool) {
	lower := strings.ToLower(value)
	for _, day := range dayWords {
		index := strings.Index(lower, day.word)
		if index >= 0 {
			rest := value[:index] + value[index+len(day.word):]
			rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "at "))
			return day.offset, rest, true
		}
	}
	return 0, "", false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// fuzzyDay resolves `Today 12:30`, `yesterday at 3:04 pm` and friends.
func fuzzyDay(value string, now time.Time) (time.Time, bool) {
	offset, rest, ok := dayOffset(value)
	if !ok {
		return time.Time{}, false
	}
	day := midnight(now).AddDate(0, 0, offset)

	match := clockRegex.FindStringSubmatch(rest)
	if match == nil {
		return day, true
	}
	hour, _ := strconv.Atoi(match[1])
	minute, _ := strconv.Atoi(match[2])
	second, _ := strconv.Atoi(match[3])
	switch strings.ToLower(match[4]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second), true
}

func filterTimeago(p Pipeline, value string, _ definition.Filter) (string, error) {
	t, ok := ParseRelative(value, p.clock.Now())
	if !ok {
		return p.degrade(value, errors.New("not a relative time"))
	}
	return p.format(t), nil
}

func filterFuzzytime(p Pipeline, value string, _ definition.Filter) (string, error) {
	now := p.clock.Now()
	t, ok := fuzzyDay(value, now)
	if ok {
		return p.format(t), nil
	}
	t, ok = ParseRelative(value, now)
	if ok {
		return p.format(t), nil
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(value), p.clock.Location())
	if err != nil {
		return p.degrade(value, err)
	}
	return p.format(t), nil
}

// filterReltime parses the value with a layout after resolving a leading day word, the
// layout then only describes the time of day.
func filterReltime(p Pipeline, value string, f definition.Filter) (string, error) {
	if f.Arg(0) == "" {
		return filterFuzzytime(p, value, f)
	}

	now := p.clock.Now()
	offset, rest, ok := dayOffset(value)
	if !ok {
		t, err := p.parseLayout(value, f.Arg(0))
		if err != nil {
			return p.degrade(value, err)
		}
		return p.format(t), nil
	}

	goLayout, err := GoLayout(f.Arg(0))
	if err != nil {
		return p.degrade(value, err)
	}
	clock, err := time.ParseInLocation(goLayout, rest, p.clock.Location())
	if err != nil {
		return p.degrade(value, err)
	}
	day := midnight(now).AddDate(0, 0, offset)
	t := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location())
	return p.format(t), nil
}
