package selector

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"trackscrape/internal/definition"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type filterFunc func(p Pipeline, value string, f definition.Filter) (string, error)

var filters map[string]filterFunc

func init() {
	filters = map[string]filterFunc{
		"querystring": filterQuerystring,
		"dateparse":   filterDateparse,
		"timeparse":   filterDateparse,
		"regexp":      filterRegexp,
		"re_replace":  filterReReplace,
		"split":       filterSplit,
		"replace":     filterReplace,
		"trim":        filterTrim,
		"append":      filterAppend,
		"prepend":     filterPrepend,
		"tolower":     filterToLower,
		"toupper":     filterToUpper,
		"urldecode":   filterURLDecode,
		"urlencode":   filterURLEncode,
		"diacritics":  filterDiacritics,
		"timeago":     filterTimeago,
		"reltime":     filterReltime,
		"fuzzytime":   filterFuzzytime,
	}
}

// KnownFilter tells if name is part of the filter vocabulary.
func KnownFilter(name string) bool {
	_, ok := filters[name]
	return ok
}

// ApplyFilters runs the filters in declaration order, an empty list returns value as is.
func (p Pipeline) ApplyFilters(value string, list []definition.Filter) (string, error) {
	for _, f := range list {
		fn, ok := filters[f.Name]
		if !ok {
			return "", &Error{Filter: f.Name, Err: ErrUnknownFilter}
		}
		out, err := fn(p, value, f)
		if err != nil {
			return "", &Error{Filter: f.Name, Err: err}
		}
		value = out
	}
	return value, nil
}

func requireArgs(f definition.Filter, n int) error {
	if len(f.Args) < n {
		return fmt.Errorf("%w: expected %d argument(s), got %d", ErrFilterArgs, n, len(f.Args))
	}
	return nil
}

var regexCache sync.Map

func compileRegex(pattern string) (*regexp.Regexp, error) {
	cached, ok := regexCache.Load(pattern)
	if ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFilterArgs, err)
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func filterQuerystring(_ Pipeline, value string, f definition.Filter) (string, error) {
	err := requireArgs(f, 1)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a url: %w", ErrFilterArgs, value, err)
	}
	return parsed.Query().Get(f.Arg(0)), nil
}

// filterRegexp returns the first capture group, or the whole match for a pattern
// without groups. No match gives an empty string.
func filterRegexp(_ Pipeline, value string, f definition.Filter) (string, error) {
	err := requireArgs(f, 1)
	if err != nil {
		return "", err
	}
	re, err := compileRegex(f.Arg(0))
	if err != nil {
		return "", err
	}
	match := re.FindStringSubmatch(value)
	switch len(match) {
	case 0:
		return "", nil
	case 1:
		return match[0], nil
	}
	return match[1], nil
}

func filterReReplace(_ Pipeline, value string, f definition.Filter) (string, error) {
	err := requireArgs(f, 2)
	if err != nil {
		return "", err
	}
	re, err := compileRegex(f.Arg(0))
	if err != nil {
		return "", err
	}
	return re.ReplaceAllString(value, f.Arg(1)), nil
}

func filterSplit(_ Pipeline, value string, f definition.Filter) (string, error) {
	err := requireArgs(f, 2)
	if err != nil {
		return "", err
	}
	index, err := strconv.Atoi(strings.TrimSpace(f.Arg(1)))
	if err != nil {
		return "", fmt.Errorf("%w: index %q", ErrFilterArgs, f.Arg(1))
	}
	parts := strings.Split(value, f.Arg(0))
	if index < 0 {
		index += len(parts)
	}
	if index < 0 || index >= len(parts) {
		return "", fmt.Errorf("%w: index %s out of range for %d part(s)", ErrFilterArgs, f.Arg(1), len(parts))
	}
	return parts[index], nil
}

func filterReplace(_ Pipeline, value string, f definition.Filter) (string, error) {
	err := requireArgs(f, 2)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(value, f.Arg(0), f.Arg(1)), nil
}

func filterTrim(_ Pipeline, value string, f definition.Filter) (string, error) {
	if len(f.Args) == 0 {
		return strings.TrimSpace(value), nil
	}
	return strings.Trim(value, f.Arg(0)), nil
}

func filterAppend(_ Pipeline, value string, f definition.Filter) (string, error) {
	return value + f.Arg(0), nil
}

func filterPrepend(_ Pipeline, value string, f definition.Filter) (string, error) {
	return f.Arg(0) + value, nil
}

func filterToLower(_ Pipeline, value string, _ definition.Filter) (string, error) {
	return strings.ToLower(value), nil
}

func filterToUpper(_ Pipeline, value string, _ definition.Filter) (string, error) {
	return strings.ToUpper(value), nil
}

func filterURLDecode(p Pipeline, value string, _ definition.Filter) (string, error) {
	out, err := url.QueryUnescape(value)
	if err != nil {
		p.tel.ReportWarning(report_value_undecoded, value, err)
		return value, nil
	}
	return out, nil
}

func filterURLEncode(_ Pipeline, value string, _ definition.Filter) (string, error) {
	return url.QueryEscape(value), nil
}

func filterDiacritics(_ Pipeline, value string, _ definition.Filter) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return "", err
	}
	return out, nil
}
