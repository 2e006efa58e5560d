package indexer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"trackscrape/internal/definition"
	"trackscrape/internal/selector"
	"trackscrape/internal/tmpl"
	"trackscrape/internal/transport"
	"trackscrape/pkg/htmlutil"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const rawInput = "$raw"

func optionalInt(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// queryContext builds the template context of a query on top of baseContext.
func (i *Indexer) queryContext(q Query, trackerCats []string) (tmpl.Context, error) {
	keywords := q.Keywords()
	filtered, err := i.pipeline.ApplyFilters(keywords, i.def.Search.KeywordsFilters)
	if err != nil {
		return tmpl.Context{}, fmt.Errorf("keywordsfilters: %w", err)
	}

	season := ""
	if q.Season > 0 {
		season = strconv.Itoa(q.Season)
	}

	return i.baseContext().With(map[string]tmpl.Value{
		".Query.Type":        tmpl.String(q.Type),
		".Query.Q":           tmpl.String(q.Q),
		".Query.Keywords":    tmpl.String(keywords),
		".Query.Series":      tmpl.String(q.Q),
		".Query.Season":      tmpl.String(season),
		".Query.Ep":          tmpl.String(q.Episode),
		".Query.Episode":     tmpl.String(q.EpisodeString()),
		".Query.IMDBID":      tmpl.String(q.IMDBID),
		".Query.IMDBIDShort": tmpl.String(q.IMDBIDShort()),
		".Query.TVDBID":      tmpl.String(optionalInt(q.TVDBID)),
		".Query.TVRageID":    tmpl.String(optionalInt(q.TVRageID)),
		".Query.TMDBID":      tmpl.String(optionalInt(q.TMDBID)),
		".Query.Limit":       tmpl.String(optionalInt(q.Limit)),
		".Query.Offset":      tmpl.String(strconv.Itoa(q.Offset)),
		".Categories":        tmpl.List(trackerCats...),
		".Keywords":          tmpl.String(filtered),
	}), nil
}

// appendQuery adds an already encoded query string to a url.
func appendQuery(u, query string) string {
	if query == "" {
		return u
	}
	switch {
	case !strings.Contains(u, "?"):
		return u + "?" + query
	case strings.HasSuffix(u, "?") || strings.HasSuffix(u, "&"):
		return u + query
	}
	return u + "&" + query
}

func (i *Indexer) buildSearchRequest(path definition.SearchPath, ctx tmpl.Context) (transport.Request, error) {
	renderedPath, err := tmpl.Render(path.Path, ctx)
	if err != nil {
		return transport.Request{}, fmt.Errorf("search path: %w", err)
	}

	form := url.Values{}
	var raw []string
	for _, inputs := range []definition.Pairs{i.def.Search.Inputs, path.Inputs} {
		for _, pair := range inputs {
			value, err := tmpl.Render(pair.Value, ctx)
			if err != nil {
				return transport.Request{}, fmt.Errorf("search input %s: %w", pair.Key, err)
			}
			if pair.Key == rawInput {
				raw = append(raw, value)
				continue
			}
			form.Set(pair.Key, value)
		}
	}

	headers, err := renderPairs(i.def.Search.Headers, ctx)
	if err != nil {
		return transport.Request{}, fmt.Errorf("search headers: %w", err)
	}

	req := transport.Request{
		Method:  strings.ToUpper(path.Method),
		URL:     i.resolve(renderedPath),
		Headers: headers,
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	if req.Method == http.MethodGet {
		req.URL = appendQuery(req.URL, form.Encode())
	} else {
		req.Form = form
	}
	for _, r := range raw {
		req.URL = appendQuery(req.URL, r)
	}
	return req, nil
}

// isStale tells if a response shows that the session is no longer logged in.
func (i *Indexer) isStale(res transport.Response) bool {
	if !i.def.HasLogin() {
		return false
	}
	if res.IsRedirect {
		return true
	}
	test := i.def.Login.Test
	if test == nil || test.Selector == "" {
		return false
	}
	doc, _, err := i.document(res)
	if err != nil {
		return true
	}
	_, err = selector.Resolve(doc.Selection, test.Selector)
	return err != nil
}

// fetch sends a request that needs a session. A stale response triggers one login and one
// retry, a second stale response is a LoginError.
func (i *Indexer) fetch(ctx context.Context, req transport.Request) (transport.Response, error) {
	if !i.def.HasLogin() {
		return i.follow(ctx, req)
	}

	res, err := i.do(ctx, req)
	if err != nil {
		return transport.Response{}, err
	}
	if !i.isStale(res) {
		return res, nil
	}

	i.tel.ReportDebug("stale session, logging in again", req.URL)
	err = i.Login(ctx)
	if err != nil {
		return transport.Response{}, err
	}

	res, err = i.do(ctx, req)
	if err != nil {
		return transport.Response{}, err
	}
	if i.isStale(res) {
		i.setState(Failed)
		message := ""
		if res.IsRedirect {
			message = "redirected to " + res.RedirectTarget
		}
		return transport.Response{}, &LoginError{Site: i.def.Key(), Message: message, Err: ErrStaleSession}
	}
	return res, nil
}

func (i *Indexer) needsLogin() bool {
	if !i.def.HasLogin() {
		return false
	}
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.state == Unauthenticated && i.cookies == ""
}

func (i *Indexer) ensureLogin(ctx context.Context) error {
	if !i.needsLogin() {
		return nil
	}
	return i.Login(ctx)
}

func pathMatches(path definition.SearchPath, trackerCats []string) bool {
	if len(path.Categories) == 0 || len(trackerCats) == 0 {
		return true
	}
	for _, c := range path.Categories {
		for _, t := range trackerCats {
			if c == t {
				return true
			}
		}
	}
	return false
}

// Search runs a query against every matching search path, in order.
func (i *Indexer) Search(ctx context.Context, q Query) ([]Release, error) {
	ctx, span := tracer.Start(ctx, "indexer:Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("site", i.def.Key()),
		attribute.String("query", q.Keywords()),
	)

	cached, ok := i.cache.get(q)
	if ok {
		span.SetAttributes(attribute.Bool("cached", true))
		return cached, nil
	}

	err := i.ensureLogin(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "login failed")
		return nil, err
	}

	trackerCats := i.mapper.MapToTracker(q.Categories)
	if len(q.Categories) == 0 {
		trackerCats = i.mapper.Defaults()
	}
	tctx, err := i.queryContext(q, trackerCats)
	if err != nil {
		span.SetStatus(codes.Error, "build context")
		return nil, err
	}

	var out []Release
	for _, path := range i.def.SearchPaths() {
		if !pathMatches(path, trackerCats) {
			continue
		}
		releases, err := i.searchPath(ctx, path, tctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "search failed")
			return nil, err
		}
		out = append(out, releases...)
	}

	i.tel.ReportCount(report_release_count, int64(len(out)))
	i.cache.add(q, out)
	return out, nil
}

func (i *Indexer) searchPath(ctx context.Context, path definition.SearchPath, tctx tmpl.Context) ([]Release, error) {
	req, err := i.buildSearchRequest(path, tctx)
	if err != nil {
		return nil, err
	}
	res, err := i.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if res.Status >= 400 {
		return nil, fmt.Errorf("search %s: %w %d", res.URL, ErrUnexpectedStatus, res.Status)
	}

	doc, content, err := i.document(res)
	if err != nil {
		parseErr := &ParseError{Site: i.def.Key(), URL: res.URL, DumpID: i.tel.StoreLongMessage(string(content)), Err: err}
		i.tel.ReportBroken(report_page_unparsable, parseErr)
		return nil, nil
	}

	message, failed := i.checkError(doc, i.def.Search.Error)
	if failed {
		return nil, fmt.Errorf("%w: %s", ErrTrackerError, message)
	}

	releases, parseErr := i.parseRows(doc, res.URL, tctx)
	if parseErr != nil {
		parseErr.DumpID = i.tel.StoreLongMessage(string(content))
		i.tel.ReportBroken(report_page_unparsable, parseErr)
	}
	return releases, nil
}

// Ratio reads the ratio block, usually the user's ratio shown in the site header.
func (i *Indexer) Ratio(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "indexer:Ratio")
	defer span.End()

	if i.def.Ratio == nil {
		return "", ErrNoRatio
	}
	err := i.ensureLogin(ctx)
	if err != nil {
		return "", err
	}

	res, err := i.fetch(ctx, transport.Request{URL: i.resolve(i.def.Ratio.Path)})
	if err != nil {
		span.SetStatus(codes.Error, "fetch ratio page")
		return "", err
	}
	doc, _, err := i.document(res)
	if err != nil {
		return "", fmt.Errorf("parse ratio page: %w", err)
	}
	value, err := i.pipeline.Extract(doc.Selection, i.def.Ratio.SelectorBlock)
	if err != nil {
		return "", fmt.Errorf("ratio: %w", err)
	}
	return htmlutil.NormalizeSpace(value), nil
}

// ClearCache drops the cached results of every query.
func (i *Indexer) ClearCache() {
	i.cache.purge()
}
