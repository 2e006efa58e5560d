// Package indexer drives one tracker from its definition: it logs in, builds and sends
// search requests and turns result pages into releases.
package indexer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"trackscrape/internal/categories"
	"trackscrape/internal/components/assert"
	"trackscrape/internal/components/chrono"
	"trackscrape/internal/components/telemetry"
	"trackscrape/internal/definition"
	"trackscrape/internal/selector"
	"trackscrape/internal/tmpl"
	"trackscrape/internal/transport"
	"trackscrape/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("trackscrape/indexer")

const (
	report_row_skipped     = "search-row"
	report_page_unparsable = "search-page"
	report_release_count   = "search-releases"
	report_session_save    = "session-save"
	report_session_load    = "session-load"
	report_login_state     = "login-state"

	report_details_fallback = "search-details-fallback"
)

const maxRedirects = 5

// Transport executes a single request without following redirects.
type Transport interface {
	Do(ctx context.Context, req transport.Request) (transport.Response, error)
}

// SessionStore persists the cookie string of a site between runs.
type SessionStore interface {
	Load(ctx context.Context, site string) (string, error)
	Save(ctx context.Context, site, cookies string) error
}

type Options struct {
	Definition *definition.Definition
	// Config holds the setting values by name, plus `cookie` and `captcha` for the login
	// methods that need them.
	Config map[string]string
	Tel    telemetry.API
	Clock  chrono.API

	// Transport defaults to a transport.Client paced by the definition's request delay.
	Transport Transport
	Sessions  SessionStore

	CacheTTL  time.Duration
	CacheSize int
}

type Indexer struct {
	def      *definition.Definition
	config   map[string]string
	baseURL  *url.URL
	tel      telemetry.API
	clock    chrono.API
	http     Transport
	sessions SessionStore
	mapper   *categories.Mapper
	pipeline selector.Pipeline
	cache    *queryCache

	// loginMutex serializes logins, mutex guards cookies and state.
	loginMutex sync.Mutex
	mutex      sync.Mutex
	cookies    string
	state      LoginState
}

func validateFilters(def *definition.Definition) error {
	check := func(where string, filters []definition.Filter) error {
		for _, f := range filters {
			if !selector.KnownFilter(f.Name) {
				return &definition.Error{
					Site:  def.Key(),
					Where: where,
					Err:   fmt.Errorf("%w: unknown filter %q", definition.ErrInvalidValue, f.Name),
				}
			}
		}
		return nil
	}

	err := check("search.keywordsfilters", def.Search.KeywordsFilters)
	if err != nil {
		return err
	}
	return def.WalkSelectors(func(where string, block definition.SelectorBlock) error {
		return check(where, block.Filters)
	})
}

func New(ctx context.Context, opts Options) (*Indexer, error) {
	assert.NotNil(opts.Definition)
	assert.NotNil(opts.Tel)
	assert.NotNil(opts.Clock)

	def := opts.Definition
	tel := telemetry.NewScopedAPI("indexer_"+def.Key(), opts.Tel)

	baseURL, err := url.Parse(def.BaseURL())
	if err != nil {
		return nil, &definition.Error{Site: def.Key(), Where: "links", Err: fmt.Errorf("%w: %w", definition.ErrInvalidValue, err)}
	}
	err = validateFilters(def)
	if err != nil {
		return nil, err
	}
	mapper, err := categories.NewMapper(def.Key(), def.Caps)
	if err != nil {
		return nil, err
	}

	httpClient := opts.Transport
	if httpClient == nil {
		httpClient = transport.New(transport.Options{
			RequestDelay: time.Duration(def.RequestDelay * float64(time.Second)),
			Tel:          tel,
		})
	}

	config := make(map[string]string, len(opts.Config))
	for k, v := range opts.Config {
		config[k] = v
	}

	i := &Indexer{
		def:      def,
		config:   config,
		baseURL:  baseURL,
		tel:      tel,
		clock:    opts.Clock,
		http:     httpClient,
		sessions: opts.Sessions,
		mapper:   mapper,
		pipeline: selector.NewPipeline(opts.Clock, tel),
		cache:    newQueryCache(opts.CacheSize, opts.CacheTTL),
	}

	if i.sessions != nil && def.HasLogin() {
		cookies, err := i.sessions.Load(ctx, def.Key())
		if err != nil {
			tel.ReportWarning(report_session_load, err)
		}
		i.cookies = cookies
	}

	return i, nil
}

func (i *Indexer) Key() string {
	return i.def.Key()
}

func (i *Indexer) Definition() *definition.Definition {
	return i.def
}

// Capabilities is what a caller needs to know to build a query.
type Capabilities struct {
	Modes      map[string][]string
	Categories []categories.Mapping
	Settings   []definition.Setting
}

func (i *Indexer) Capabilities() Capabilities {
	modes := i.def.Caps.Modes
	if len(modes) == 0 {
		modes = map[string][]string{"search": {"q"}}
	}
	return Capabilities{
		Modes:      modes,
		Categories: i.mapper.Mappings(),
		Settings:   i.def.Settings,
	}
}

func (i *Indexer) State() LoginState {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.state
}

func (i *Indexer) Cookies() string {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.cookies
}

func (i *Indexer) setState(state LoginState) {
	i.mutex.Lock()
	i.state = state
	i.mutex.Unlock()
	i.tel.ReportDebug(report_login_state, state.String())
}

func (i *Indexer) setCookies(cookies string) {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.cookies = cookies
}

// resolve turns a path or relative link into an absolute url on the site.
func (i *Indexer) resolve(ref string) string {
	return resolveAgainst(i.baseURL, ref)
}

func resolveAgainst(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return base.String()
	}
	u, err := base.Parse(ref)
	if err != nil {
		return base.String() + strings.TrimPrefix(ref, "/")
	}
	return u.String()
}

// do sends a request with the session cookies and keeps the cookies of the response.
func (i *Indexer) do(ctx context.Context, req transport.Request) (transport.Response, error) {
	i.mutex.Lock()
	sent := i.cookies
	i.mutex.Unlock()

	req.Cookies = sent
	res, err := i.http.Do(ctx, req)
	if err != nil {
		return transport.Response{}, err
	}

	i.mutex.Lock()
	if i.cookies == sent {
		i.cookies = res.Cookies
	} else {
		i.cookies = transport.MergeCookies(i.cookies, res.Cookies)
	}
	i.mutex.Unlock()

	return res, nil
}

// follow is do, redirects are followed with GET requests while cookies accumulate.
func (i *Indexer) follow(ctx context.Context, req transport.Request) (transport.Response, error) {
	res, err := i.do(ctx, req)
	for hops := 0; err == nil && res.IsRedirect; hops++ {
		if hops == maxRedirects {
			return res, fmt.Errorf("%w: last target %s", ErrTooManyRedirects, res.RedirectTarget)
		}
		req = transport.Request{
			Method:  http.MethodGet,
			URL:     res.RedirectTarget,
			Headers: req.Headers,
			Referer: req.URL,
		}
		res, err = i.do(ctx, req)
	}
	return res, err
}

// document decodes the page per the definition encoding and parses it.
func (i *Indexer) document(res transport.Response) (*goquery.Document, []byte, error) {
	content, err := htmlutil.Decode(res.Content, i.def.Encoding, res.ContentType)
	if err != nil {
		return nil, res.Content, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, content, err
	}
	if res.URL != "" {
		doc.Url, _ = url.Parse(res.URL)
	}
	return doc, content, nil
}

func renderPairs(pairs definition.Pairs, ctx tmpl.Context) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		value, err := tmpl.Render(pair.Value, ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pair.Key, err)
		}
		out[pair.Key] = value
	}
	return out, nil
}

func isTrue(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err == nil {
		return b
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes":
		return true
	}
	return false
}

// baseContext exposes `.Config.*`, `.True`, `.False` and `.Today.Year`.
func (i *Indexer) baseContext() tmpl.Context {
	values := map[string]tmpl.Value{
		".True":            tmpl.String("True"),
		".False":           tmpl.String(""),
		".Today.Year":      tmpl.String(strconv.Itoa(i.clock.Now().Year())),
		".Config.sitelink": tmpl.String(i.baseURL.String()),
	}
	for k, v := range i.config {
		values[".Config."+k] = tmpl.String(v)
	}
	for _, setting := range i.def.Settings {
		value, ok := i.config[setting.Name]
		if !ok {
			value = setting.Default
		}
		if setting.Type == definition.SETTING_CHECKBOX {
			checked := isTrue(value)
			value = ""
			if checked {
				value = "True"
			}
		}
		values[".Config."+setting.Name] = tmpl.String(value)
	}
	return tmpl.NewContext(values)
}
