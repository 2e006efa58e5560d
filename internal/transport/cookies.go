package transport

import (
	"net/http"
	"strings"
	"time"
)

type cookiePair struct {
	name  string
	value string
}

func parseCookieString(s string) []cookiePair {
	var out []cookiePair
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, cookiePair{name: name, value: strings.TrimSpace(value)})
	}
	return out
}

func joinCookies(pairs []cookiePair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.name+"="+p.value)
	}
	return strings.Join(parts, "; ")
}

func setCookie(pairs []cookiePair, name, value string) []cookiePair {
	for i := range pairs {
		if pairs[i].name == name {
			pairs[i].value = value
			return pairs
		}
	}
	return append(pairs, cookiePair{name: name, value: value})
}

func deleteCookie(pairs []cookiePair, name string) []cookiePair {
	out := pairs[:0]
	for _, p := range pairs {
		if p.name != name {
			out = append(out, p)
		}
	}
	return out
}

// MergeCookies combines `name=value; ...` strings, a later value for the same name wins
// while the position of its first appearance is kept.
func MergeCookies(cookies ...string) string {
	var merged []cookiePair
	for _, s := range cookies {
		for _, p := range parseCookieString(s) {
			merged = setCookie(merged, p.name, p.value)
		}
	}
	return joinCookies(merged)
}

// ApplySetCookies merges the cookies of a response into a cookie string, expired or
// deleted cookies are dropped.
func ApplySetCookies(base string, cookies []*http.Cookie) string {
	merged := parseCookieString(MergeCookies(base))
	for _, c := range cookies {
		expired := !c.Expires.IsZero() && c.Expires.Before(time.Now())
		if c.MaxAge < 0 || expired || c.Value == "deleted" {
			merged = deleteCookie(merged, c.Name)
			continue
		}
		merged = setCookie(merged, c.Name, c.Value)
	}
	return joinCookies(merged)
}
