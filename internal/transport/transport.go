// Package transport is the HTTP collaborator of the indexer: retries on transient failures,
// request pacing and explicit cookie handling. Redirects are never followed, they are
// surfaced to the caller.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"trackscrape/internal/components/assert"
	"trackscrape/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Form is sent as the urlencoded body of a POST, or appended to the query of a GET.
	Form url.Values
	// Body is sent verbatim when Form is empty.
	Body    string
	Cookies string
	Referer string
}

type Response struct {
	Status  int
	Content []byte
	// Cookies is the request cookie string with the Set-Cookie headers of the response applied.
	Cookies        string
	IsRedirect     bool
	RedirectTarget string
	// URL is the url that was requested, after query params were added.
	URL         string
	ContentType string
}

type Options struct {
	CloudflareBypass bool
	// RequestDelay is the minimum time between two requests.
	RequestDelay time.Duration
	Timeout      time.Duration
	UserAgent    string
	// Attempts counts the first try, transient failures are retried until it is exhausted.
	Attempts  int
	RetryWait time.Duration
	Tel       telemetry.API
}

type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func New(opts Options) *Client {
	assert.NotNil(opts.Tel)

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RetryWait == 0 {
		opts.RetryWait = 2 * time.Second
	}

	httpClient := resty.New()
	// cookies are owned by the indexer session, not by a jar
	httpClient.SetCookieJar(nil)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))

	httpClient.SetRetryCount(opts.Attempts - 1)
	httpClient.SetRetryWaitTime(opts.RetryWait)
	httpClient.SetRetryMaxWaitTime(opts.RetryWait)
	httpClient.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() >= 500 || res.StatusCode() == http.StatusTooManyRequests
	})

	if opts.RequestDelay > 0 {
		rateLimiter := rate.NewLimiter(rate.Every(opts.RequestDelay), 1)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, opts.Tel)

	return &Client{http: httpClient, tel: opts.Tel}
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

// Do executes one request. Only network failures are errors, any status code is returned
// as a Response.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := c.http.R().SetContext(ctx)
	for name, value := range req.Headers {
		r.SetHeader(name, value)
	}
	if req.Cookies != "" {
		r.SetHeader("cookie", req.Cookies)
	}
	if req.Referer != "" {
		r.SetHeader("referer", req.Referer)
	}

	switch {
	case len(req.Form) > 0 && method == http.MethodGet:
		r.SetQueryParamsFromValues(req.Form)
	case len(req.Form) > 0:
		r.SetFormDataFromValues(req.Form)
	case req.Body != "":
		r.SetBody(req.Body)
	}

	res, err := r.Execute(method, req.URL)
	if err != nil {
		return Response{}, fmt.Errorf("%s %s: %w", method, req.URL, err)
	}

	out := Response{
		Status:      res.StatusCode(),
		Content:     res.Body(),
		Cookies:     ApplySetCookies(req.Cookies, res.Cookies()),
		URL:         req.URL,
		ContentType: res.Header().Get("content-type"),
	}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		out.URL = res.RawResponse.Request.URL.String()
	}

	location := res.Header().Get("location")
	if isRedirect(out.Status) && location != "" {
		out.IsRedirect = true
		out.RedirectTarget = location
		base, err := url.Parse(out.URL)
		if err == nil {
			target, err := base.Parse(location)
			if err == nil {
				out.RedirectTarget = target.String()
			}
		}
	}

	return out, nil
}
