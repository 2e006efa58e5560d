// Package definition holds the schema of a tracker site definition: the YAML document that
// describes how to log in to a tracker, how to search it and how to read its result pages.
package definition

import "strings"

// Definition is a parsed site definition. It is read-only once Parse returns.
type Definition struct {
	ID           string   `yaml:"id"`
	Site         string   `yaml:"site"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Language     string   `yaml:"language"`
	Type         string   `yaml:"type"`
	Encoding     string   `yaml:"encoding"`
	RequestDelay float64  `yaml:"requestDelay"`
	Links        []string `yaml:"links"`
	LegacyLinks  []string `yaml:"legacylinks"`

	Caps     Capabilities `yaml:"caps"`
	Settings []Setting    `yaml:"settings"`
	Login    *Login       `yaml:"login"`
	Ratio    *Ratio       `yaml:"ratio"`
	Search   Search       `yaml:"search"`
}

// Capabilities describes the categories and search modes a tracker supports.
type Capabilities struct {
	// Categories is the short form: tracker category id -> canonical category name.
	Categories       Pairs               `yaml:"categories"`
	CategoryMappings []CategoryMapping   `yaml:"categorymappings"`
	Modes            map[string][]string `yaml:"modes"`
}

type CategoryMapping struct {
	ID      string `yaml:"id"`
	Cat     string `yaml:"cat"`
	Desc    string `yaml:"desc"`
	Default bool   `yaml:"default"`
}

const (
	SETTING_TEXT     = "text"
	SETTING_PASSWORD = "password"
	SETTING_CHECKBOX = "checkbox"
	SETTING_SELECT   = "select"
	SETTING_INFO     = "info"
)

// Setting is a user configurable value, exposed to templates as `.Config.<name>`.
type Setting struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Label   string `yaml:"label"`
	Default string `yaml:"default"`
	Options Pairs  `yaml:"options"`
}

const (
	LOGIN_POST   = "post"
	LOGIN_GET    = "get"
	LOGIN_FORM   = "form"
	LOGIN_COOKIE = "cookie"
)

type Login struct {
	Path           string       `yaml:"path"`
	Method         string       `yaml:"method"`
	Form           string       `yaml:"form"`
	Inputs         Pairs        `yaml:"inputs"`
	SelectorInputs Fields       `yaml:"selectorinputs"`
	Error          []ErrorBlock `yaml:"error"`
	Test           *Test        `yaml:"test"`
	Captcha        *Captcha     `yaml:"captcha"`
	Headers        Pairs        `yaml:"headers"`
}

// ErrorBlock detects an error page: when Selector matches, the page is an error and Message
// (when present) extracts the text shown to the user.
type ErrorBlock struct {
	Selector string         `yaml:"selector"`
	Message  *SelectorBlock `yaml:"message"`
}

// Test describes a page that only renders Selector for a logged in session.
type Test struct {
	Path     string `yaml:"path"`
	Selector string `yaml:"selector"`
}

type Captcha struct {
	Type     string `yaml:"type"`
	Selector string `yaml:"selector"`
	Input    string `yaml:"input"`
}

type Ratio struct {
	Path          string `yaml:"path"`
	SelectorBlock `yaml:",inline"`
}

type Search struct {
	Path            string       `yaml:"path"`
	Paths           []SearchPath `yaml:"paths"`
	Inputs          Pairs        `yaml:"inputs"`
	KeywordsFilters []Filter     `yaml:"keywordsfilters"`
	Headers         Pairs        `yaml:"headers"`
	Error           []ErrorBlock `yaml:"error"`
	Rows            Rows         `yaml:"rows"`
	Fields          Fields       `yaml:"fields"`
}

type SearchPath struct {
	Path       string   `yaml:"path"`
	Method     string   `yaml:"method"`
	Categories []string `yaml:"categories"`
	Inputs     Pairs    `yaml:"inputs"`
}

type Rows struct {
	Selector string `yaml:"selector"`
	// After merges this many following rows into every result row.
	After       int            `yaml:"after"`
	DateHeaders *SelectorBlock `yaml:"dateheaders"`
}

// SelectorBlock describes how a single string is read out of a piece of markup.
type SelectorBlock struct {
	Text      string   `yaml:"text"`
	Selector  string   `yaml:"selector"`
	Attribute string   `yaml:"attribute"`
	Remove    string   `yaml:"remove"`
	Case      Pairs    `yaml:"case"`
	Filters   []Filter `yaml:"filters"`
	Optional  bool     `yaml:"optional"`
	Default   string   `yaml:"default"`
}

// Filter is one named transformation, Args holds zero, one or two arguments as text.
type Filter struct {
	Name string
	Args []string
}

// Arg returns the i-th argument or an empty string.
func (f Filter) Arg(i int) string {
	if i < len(f.Args) {
		return f.Args[i]
	}
	return ""
}

type Field struct {
	Name  string
	Block SelectorBlock
}

// Fields is an ordered name -> SelectorBlock mapping, order is the order of the document.
type Fields []Field

func (f Fields) Get(name string) (SelectorBlock, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Block, true
		}
	}
	return SelectorBlock{}, false
}

type Pair struct {
	Key   string
	Value string
}

// Pairs is an ordered string -> string mapping.
type Pairs []Pair

func (p Pairs) Get(key string) (string, bool) {
	for _, pair := range p {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// Key identifies the definition, newer documents use `id` and older ones `site`.
func (d *Definition) Key() string {
	if d.ID != "" {
		return d.ID
	}
	return d.Site
}

// BaseURL is the first configured link, always ending in a slash.
func (d *Definition) BaseURL() string {
	if len(d.Links) == 0 {
		return ""
	}
	link := d.Links[0]
	if !strings.HasSuffix(link, "/") {
		link += "/"
	}
	return link
}

func (d *Definition) HasLogin() bool {
	return d.Login != nil && d.Login.Method != ""
}

// SearchPaths returns the search endpoints, a lone `path` is treated as a single entry.
func (d *Definition) SearchPaths() []SearchPath {
	if len(d.Search.Paths) > 0 {
		return d.Search.Paths
	}
	return []SearchPath{{Path: d.Search.Path}}
}

func (d *Definition) SupportsMode(mode string) bool {
	if len(d.Caps.Modes) == 0 {
		return mode == "search"
	}
	_, ok := d.Caps.Modes[mode]
	return ok
}

// Setting looks up a setting by name.
func (d *Definition) Setting(name string) (Setting, bool) {
	for _, s := range d.Settings {
		if s.Name == name {
			return s, true
		}
	}
	return Setting{}, false
}
