package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"trackscrape/internal/definition"
	"trackscrape/internal/selector"
	"trackscrape/internal/tmpl"
	"trackscrape/internal/transport"
	"trackscrape/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type LoginState int

const (
	Unauthenticated LoginState = iota
	Submitting
	Verifying
	Authenticated
	Failed
)

func (s LoginState) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Submitting:
		return "submitting"
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("LoginState(%d)", int(s))
}

const (
	cloudflareChallengeScript = `script[src="/cdn-cgi/scripts/cf.challenge.js"]`
	cloudflareClearancePath   = "/cdn-cgi/l/chk_captcha"
	simpleCaptchaScript       = `script[src*="simpleCaptcha"]`
)

// Login runs the login method of the definition and verifies the resulting session.
func (i *Indexer) Login(ctx context.Context) error {
	i.loginMutex.Lock()
	defer i.loginMutex.Unlock()
	return i.login(ctx)
}

func (i *Indexer) loginError(err error, message string) *LoginError {
	var loginErr *LoginError
	if errors.As(err, &loginErr) {
		return loginErr
	}
	return &LoginError{Site: i.def.Key(), Message: message, Err: err}
}

func (i *Indexer) login(ctx context.Context) error {
	if !i.def.HasLogin() {
		i.setState(Authenticated)
		return nil
	}

	ctx, span := tracer.Start(ctx, "indexer:login")
	defer span.End()
	span.SetAttributes(
		attribute.String("site", i.def.Key()),
		attribute.String("method", i.def.Login.Method),
	)

	err := i.runLogin(ctx)
	if err != nil {
		i.setState(Failed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return i.loginError(err, "")
	}

	i.setState(Authenticated)
	if i.sessions != nil {
		err = i.sessions.Save(ctx, i.def.Key(), i.Cookies())
		if err != nil {
			i.tel.ReportWarning(report_session_save, err)
		}
	}
	return nil
}

func (i *Indexer) runLogin(ctx context.Context) error {
	login := i.def.Login
	i.setState(Submitting)

	var res transport.Response
	var err error
	switch login.Method {
	case definition.LOGIN_POST, definition.LOGIN_GET:
		res, err = i.loginDirect(ctx)
	case definition.LOGIN_FORM:
		res, err = i.loginForm(ctx)
	case definition.LOGIN_COOKIE:
		err = i.loginCookie()
	default:
		err = fmt.Errorf("unsupported login method %q", login.Method)
	}
	if err != nil {
		return err
	}

	i.setState(Verifying)

	var doc *goquery.Document
	if login.Method != definition.LOGIN_COOKIE {
		doc, _, err = i.document(res)
		if err != nil {
			return fmt.Errorf("parse login response: %w", err)
		}
		message, failed := i.checkError(doc, login.Error)
		if failed {
			return &LoginError{Site: i.def.Key(), Message: message, Err: ErrLoginRejected}
		}
	}

	return i.verifyTest(ctx, doc)
}

func (i *Indexer) loginInputs(ctx tmpl.Context) (url.Values, error) {
	rendered, err := renderPairs(i.def.Login.Inputs, ctx)
	if err != nil {
		return nil, fmt.Errorf("login inputs: %w", err)
	}
	values := url.Values{}
	for k, v := range rendered {
		values.Set(k, v)
	}
	return values, nil
}

func (i *Indexer) loginHeaders(ctx tmpl.Context) (map[string]string, error) {
	headers, err := renderPairs(i.def.Login.Headers, ctx)
	if err != nil {
		return nil, fmt.Errorf("login headers: %w", err)
	}
	return headers, nil
}

// loginDirect sends the templated inputs straight to the login path.
func (i *Indexer) loginDirect(ctx context.Context) (transport.Response, error) {
	tctx := i.baseContext()
	values, err := i.loginInputs(tctx)
	if err != nil {
		return transport.Response{}, err
	}
	headers, err := i.loginHeaders(tctx)
	if err != nil {
		return transport.Response{}, err
	}

	method := http.MethodPost
	if i.def.Login.Method == definition.LOGIN_GET {
		method = http.MethodGet
	}
	return i.follow(ctx, transport.Request{
		Method:  method,
		URL:     i.resolve(i.def.Login.Path),
		Form:    values,
		Headers: headers,
	})
}

func (i *Indexer) loginCookie() error {
	cookie := strings.TrimSpace(i.config["cookie"])
	if cookie == "" {
		return ErrMissingCookie
	}
	i.setCookies(transport.MergeCookies(cookie))
	return nil
}

func (i *Indexer) fetchLoginPage(ctx context.Context, loginURL string, headers map[string]string) (transport.Response, *goquery.Document, error) {
	page, err := i.follow(ctx, transport.Request{URL: loginURL, Headers: headers})
	if err != nil {
		return transport.Response{}, nil, fmt.Errorf("fetch login page: %w", err)
	}
	doc, _, err := i.document(page)
	if err != nil {
		return transport.Response{}, nil, fmt.Errorf("parse login page: %w", err)
	}
	return page, doc, nil
}

// clearCloudflare answers a Cloudflare managed challenge, the clearance request has to
// answer with a redirect for the challenge to be passed.
func (i *Indexer) clearCloudflare(ctx context.Context, doc *goquery.Document, pageURL string) error {
	ray := doc.Find("[data-ray]").First().AttrOr("data-ray", "")
	query := url.Values{}
	query.Set("id", ray)
	query.Set("g-recaptcha-response", i.config["captcha"])

	base, err := url.Parse(pageURL)
	if err != nil {
		base = i.baseURL
	}
	res, err := i.do(ctx, transport.Request{
		URL:     resolveAgainst(base, cloudflareClearancePath) + "?" + query.Encode(),
		Referer: pageURL,
	})
	if err != nil {
		return fmt.Errorf("cloudflare clearance: %w", err)
	}
	if !res.IsRedirect {
		return &LoginError{
			Site:    i.def.Key(),
			Message: fmt.Sprintf("clearance answered with status %d", res.Status),
			Err:     ErrCaptchaClearance,
		}
	}
	return nil
}

// formValues collects the named controls of a form as they would be submitted.
func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input[name], select[name], textarea[name]").Each(func(_ int, control *goquery.Selection) {
		name, _ := control.Attr("name")
		switch goquery.NodeName(control) {
		case "input":
			switch strings.ToLower(control.AttrOr("type", "text")) {
			case "checkbox", "radio":
				_, checked := control.Attr("checked")
				if !checked {
					return
				}
				values.Add(name, control.AttrOr("value", "on"))
			case "submit", "button", "image", "reset", "file":
				return
			default:
				values.Add(name, control.AttrOr("value", ""))
			}
		case "select":
			option := control.Find("option[selected]").First()
			if option.Length() == 0 {
				option = control.Find("option").First()
			}
			if option.Length() > 0 {
				values.Add(name, option.AttrOr("value", strings.TrimSpace(option.Text())))
			}
		case "textarea":
			values.Add(name, control.Text())
		}
	})
	return values
}

type simpleCaptchaResponse struct {
	Images []struct {
		Hash string `json:"hash"`
	} `json:"images"`
}

func (i *Indexer) solveSimpleCaptcha(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = i.baseURL
	}
	res, err := i.do(ctx, transport.Request{
		URL:     resolveAgainst(base, "simpleCaptcha.php?numImages=1"),
		Referer: pageURL,
	})
	if err != nil {
		return "", fmt.Errorf("simple captcha: %w", err)
	}
	var body simpleCaptchaResponse
	err = json.Unmarshal(res.Content, &body)
	if err != nil {
		return "", fmt.Errorf("simple captcha: %w", err)
	}
	if len(body.Images) == 0 || body.Images[0].Hash == "" {
		return "", fmt.Errorf("simple captcha: no image in response")
	}
	return body.Images[0].Hash, nil
}

// loginForm fills in and submits the login form of the login page.
func (i *Indexer) loginForm(ctx context.Context) (transport.Response, error) {
	login := i.def.Login
	tctx := i.baseContext()
	headers, err := i.loginHeaders(tctx)
	if err != nil {
		return transport.Response{}, err
	}

	loginURL := i.resolve(login.Path)
	page, doc, err := i.fetchLoginPage(ctx, loginURL, headers)
	if err != nil {
		return transport.Response{}, err
	}

	extra := url.Values{}
	if doc.Find(".g-recaptcha").Length() > 0 {
		if doc.Find(cloudflareChallengeScript).Length() > 0 {
			err = i.clearCloudflare(ctx, doc, page.URL)
			if err != nil {
				return transport.Response{}, err
			}
			page, doc, err = i.fetchLoginPage(ctx, loginURL, headers)
			if err != nil {
				return transport.Response{}, err
			}
		} else {
			extra.Set("g-recaptcha-response", i.config["captcha"])
		}
	}

	formSelector := login.Form
	if formSelector == "" {
		formSelector = "form"
	}
	form, err := selector.Resolve(doc.Selection, formSelector)
	if err != nil {
		return transport.Response{}, &LoginError{Site: i.def.Key(), Message: formSelector, Err: ErrFormNotFound}
	}

	values := formValues(form)
	for k, v := range extra {
		values[k] = v
	}
	for _, input := range login.SelectorInputs {
		value, err := i.pipeline.Extract(doc.Selection, input.Block)
		if err != nil {
			return transport.Response{}, fmt.Errorf("login selector input %s: %w", input.Name, err)
		}
		values.Set(input.Name, value)
	}
	inputs, err := i.loginInputs(tctx)
	if err != nil {
		return transport.Response{}, err
	}
	for k, v := range inputs {
		values[k] = v
	}

	if login.Captcha != nil && login.Captcha.Type == "image" {
		solution := i.config["captcha"]
		if solution == "" {
			return transport.Response{}, ErrCaptchaRequired
		}
		values.Set(login.Captcha.Input, solution)
	}
	if doc.Find(simpleCaptchaScript).Length() > 0 {
		hash, err := i.solveSimpleCaptcha(ctx, page.URL)
		if err != nil {
			return transport.Response{}, err
		}
		values.Set("captchaSelection", hash)
		values.Set("submitme", "X")
	}

	pageBase, err := url.Parse(page.URL)
	if err != nil || page.URL == "" {
		pageBase, _ = url.Parse(loginURL)
	}
	action := form.AttrOr("action", "")
	submitURL := pageBase.String()
	if strings.TrimSpace(action) != "" {
		submitURL = resolveAgainst(pageBase, action)
	}
	method := strings.ToUpper(form.AttrOr("method", http.MethodPost))
	if method != http.MethodGet {
		method = http.MethodPost
	}

	return i.follow(ctx, transport.Request{
		Method:  method,
		URL:     submitURL,
		Form:    values,
		Headers: headers,
		Referer: page.URL,
	})
}

// checkError returns the text of the first error block matching the page. The `message`
// selector of the block is preferred over the text of the match itself.
func (i *Indexer) checkError(doc *goquery.Document, blocks []definition.ErrorBlock) (string, bool) {
	for _, block := range blocks {
		match, err := selector.Resolve(doc.Selection, block.Selector)
		if err != nil {
			continue
		}
		message := htmlutil.NormalizeSpace(match.Text())
		if block.Message != nil {
			text, err := i.pipeline.Extract(doc.Selection, *block.Message)
			if err == nil && strings.TrimSpace(text) != "" {
				message = htmlutil.NormalizeSpace(text)
			}
		}
		return message, true
	}
	return "", false
}

// verifyTest checks the logged in marker, on the test page when the definition has one
// and on the login response otherwise.
func (i *Indexer) verifyTest(ctx context.Context, loginResponse *goquery.Document) error {
	test := i.def.Login.Test
	if test == nil {
		return nil
	}

	doc := loginResponse
	if test.Path != "" {
		res, err := i.do(ctx, transport.Request{URL: i.resolve(test.Path)})
		if err != nil {
			return fmt.Errorf("fetch test page: %w", err)
		}
		if res.IsRedirect {
			return &LoginError{Site: i.def.Key(), Message: "test page redirected to " + res.RedirectTarget, Err: ErrTestFailed}
		}
		doc, _, err = i.document(res)
		if err != nil {
			return fmt.Errorf("parse test page: %w", err)
		}
	}

	if test.Selector == "" || doc == nil {
		return nil
	}
	_, err := selector.Resolve(doc.Selection, test.Selector)
	if err != nil {
		return &LoginError{Site: i.def.Key(), Message: test.Selector, Err: ErrTestFailed}
	}
	return nil
}
