package indexer

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const postLoginDefinition = `
site: postlogin
links: [SERVER]
settings:
  - {name: username, type: text, label: Username}
  - {name: password, type: password, label: Password}
login:
  path: login.php
  method: post
  inputs:
    username: "{{ .Config.username }}"
    password: "{{ .Config.password }}"
  error:
    - selector: div.error
  test:
    selector: a.logout
search:
  path: browse.php
  rows: {selector: tr.row}
  fields:
    title: {selector: td.name}
`

const loggedInPage = `<html><body><a class="logout" href="logout.php">Logout</a>
<table><tr class="row"><td class="name">Release</td></tr></table></body></html>`

func TestPostLogin(t *testing.T) {
	tr := newTestTracker(t)
	tr.mux.HandleFunc("/login.php", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "alice", r.PostForm.Get("username"))
		require.Equal(t, "secret", r.PostForm.Get("password"))
		http.SetCookie(w, &http.Cookie{Name: "uid", Value: "1"})
		http.Redirect(w, r, "/index.php", http.StatusFound)
	})
	tr.mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("uid")
		require.NoError(t, err)
		require.Equal(t, "1", cookie.Value)
		http.SetCookie(w, &http.Cookie{Name: "pass", Value: "x"})
		_, _ = w.Write([]byte(loggedInPage))
	})
	tr.mux.HandleFunc("/browse.php", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Cookie"), "uid=1")
		require.Contains(t, r.Header.Get("Cookie"), "pass=x")
		_, _ = w.Write([]byte(loggedInPage))
	})

	sessions := &memorySessions{}
	idx, _ := newTestIndexer(t, tr, postLoginDefinition, testSetup{
		Config:   map[string]string{"username": "alice", "password": "secret"},
		Sessions: sessions,
	})

	releases, err := idx.Search(context.Background(), Query{Q: "x"})
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Equal(t, Authenticated, idx.State())
	require.Equal(t, "uid=1; pass=x", idx.Cookies())
	require.Equal(t, "uid=1; pass=x", sessions.data["postlogin"])
}

func TestPostLoginRejected(t *testing.T) {
	tr := newTestTracker(t)
	tr.handle("/login.php", `<div class="error">  Invalid
  password </div>`)
	var searches atomic.Int32
	tr.mux.HandleFunc("/browse.php", func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
	})

	idx, _ := newTestIndexer(t, tr, postLoginDefinition, testSetup{})

	_, err := idx.Search(context.Background(), Query{Q: "x"})
	require.ErrorIs(t, err, ErrLoginRejected)
	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	require.Equal(t, "Invalid password", loginErr.Message)
	require.Equal(t, "postlogin", loginErr.Site)
	require.Equal(t, Failed, idx.State())
	require.Zero(t, searches.Load())
}

func TestLoginTestFails(t *testing.T) {
	tr := newTestTracker(t)
	tr.handle("/login.php", `<p>Welcome</p>`)

	idx, _ := newTestIndexer(t, tr, postLoginDefinition, testSetup{})

	err := idx.Login(context.Background())
	require.ErrorIs(t, err, ErrTestFailed)
	require.Equal(t, Failed, idx.State())
}

const formLoginDefinition = `
site: formlogin
links: [SERVER]
settings:
  - {name: username, type: text, label: Username}
  - {name: password, type: password, label: Password}
login:
  path: login.php
  method: form
  form: form#login
  selectorinputs:
    token:
      selector: meta[name="csrf"]
      attribute: content
  inputs:
    username: "{{ .Config.username }}"
    password: "{{ .Config.password }}"
  test:
    selector: a.logout
search:
  path: browse.php
  rows: {selector: tr.row}
  fields:
    title: {selector: td.name}
`

func TestFormLogin(t *testing.T) {
	tr := newTestTracker(t)
	tr.handle("/login.php", `<html><head>
<meta name="csrf" content="meta-token">
<script src="/js/simpleCaptcha.js"></script>
</head><body>
<form id="search" action="search.php"><input name="q"></form>
<form id="login" action="takelogin.php" method="post">
  <input type="hidden" name="csrf" value="form-token">
  <input type="text" name="username">
  <input type="checkbox" name="remember" value="yes">
  <input type="checkbox" name="secure" value="1" checked>
  <select name="lang"><option value="en">English</option><option value="fr" selected>French</option></select>
  <input type="submit" name="go" value="Log in">
</form></body></html>`)
	tr.mux.HandleFunc("/simpleCaptcha.php", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("numImages"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []map[string]string{{"hash": "abc123"}},
		})
	})
	tr.mux.HandleFunc("/takelogin.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "form-token", r.PostForm.Get("csrf"))
		require.Equal(t, "meta-token", r.PostForm.Get("token"))
		require.Equal(t, "bob", r.PostForm.Get("username"))
		require.Equal(t, "hunter2", r.PostForm.Get("password"))
		require.Equal(t, "1", r.PostForm.Get("secure"))
		require.Equal(t, "fr", r.PostForm.Get("lang"))
		require.Equal(t, "abc123", r.PostForm.Get("captchaSelection"))
		require.Equal(t, "X", r.PostForm.Get("submitme"))
		require.False(t, r.PostForm.Has("remember"))
		require.False(t, r.PostForm.Has("go"))
		_, _ = w.Write([]byte(loggedInPage))
	})

	idx, _ := newTestIndexer(t, tr, formLoginDefinition, testSetup{
		Config: map[string]string{"username": "bob", "password": "hunter2"},
	})

	err := idx.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, Authenticated, idx.State())
}

func TestFormLoginFormNotFound(t *testing.T) {
	tr := newTestTracker(t)
	tr.handle("/login.php", `<form id="other"></form>`)

	idx, _ := newTestIndexer(t, tr, formLoginDefinition, testSetup{})

	err := idx.Login(context.Background())
	require.ErrorIs(t, err, ErrFormNotFound)
}

func TestFormLoginRecaptchaToken(t *testing.T) {
	tr := newTestTracker(t)
	tr.handle("/login.php", `<meta name="csrf" content="t">
<form id="login" action="takelogin.php"><div class="g-recaptcha"></div></form>`)
	tr.mux.HandleFunc("/takelogin.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "solved-token", r.PostForm.Get("g-recaptcha-response"))
		_, _ = w.Write([]byte(loggedInPage))
	})

	idx, _ := newTestIndexer(t, tr, formLoginDefinition, testSetup{
		Config: map[string]string{"captcha": "solved-token"},
	})

	require.NoError(t, idx.Login(context.Background()))
}

const cloudflarePage = `<html><body data-ray="ray42">
<script src="/cdn-cgi/scripts/cf.challenge.js"></script>
<div class="g-recaptcha"></div></body></html>`

func TestCloudflareClearance(t *testing.T) {
	tr := newTestTracker(t)
	var pageLoads atomic.Int32
	tr.mux.HandleFunc("/login.php", func(w http.ResponseWriter, r *http.Request) {
		if pageLoads.Add(1) == 1 {
			_, _ = w.Write([]byte(cloudflarePage))
			return
		}
		_, _ = w.Write([]byte(`<meta name="csrf" content="t"><form id="login" action="takelogin.php"></form>`))
	})
	tr.mux.HandleFunc("/cdn-cgi/l/chk_captcha", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "ray42", r.URL.Query().Get("id"))
		require.Equal(t, "solved-token", r.URL.Query().Get("g-recaptcha-response"))
		http.SetCookie(w, &http.Cookie{Name: "cf_clearance", Value: "ok"})
		http.Redirect(w, r, "/login.php", http.StatusFound)
	})
	tr.mux.HandleFunc("/takelogin.php", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Cookie"), "cf_clearance=ok")
		_, _ = w.Write([]byte(loggedInPage))
	})

	idx, _ := newTestIndexer(t, tr, formLoginDefinition, testSetup{
		Config: map[string]string{"captcha": "solved-token"},
	})

	require.NoError(t, idx.Login(context.Background()))
	require.Equal(t, int32(2), pageLoads.Load())
}

func TestCloudflareClearanceRejected(t *testing.T) {
	tr := newTestTracker(t)
	tr.handle("/login.php", cloudflarePage)
	tr.handle("/cdn-cgi/l/chk_captcha", `try again`)

	idx, _ := newTestIndexer(t, tr, formLoginDefinition, testSetup{})

	err := idx.Login(context.Background())
	require.ErrorIs(t, err, ErrCaptchaClearance)
	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	require.Equal(t, Failed, idx.State())
}

func TestImageCaptchaRequired(t *testing.T) {
	tr := newTestTracker(t)
	tr.handle("/login.php", `<meta name="csrf" content="t"><form id="login"><img class="captcha" src="c.png"></form>`)

	document := strings.Replace(formLoginDefinition, "  test:", `  captcha:
    type: image
    selector: img.captcha
    input: captcha_code
  test:`, 1)
	idx, _ := newTestIndexer(t, tr, document, testSetup{})

	err := idx.Login(context.Background())
	require.ErrorIs(t, err, ErrCaptchaRequired)
}

const cookieLoginDefinition = `
site: cookielogin
links: [SERVER]
login:
  method: cookie
  test:
    path: index.php
    selector: a.logout
search:
  path: browse.php
  rows: {selector: tr.row}
  fields:
    title: {selector: td.name}
`

func TestCookieLogin(t *testing.T) {
	tr := newTestTracker(t)
	tr.mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Cookie"), "uid=7")
		_, _ = w.Write([]byte(loggedInPage))
	})
	tr.mux.HandleFunc("/browse.php", func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Cookie"), "pass=abc")
		_, _ = w.Write([]byte(loggedInPage))
	})

	idx, _ := newTestIndexer(t, tr, cookieLoginDefinition, testSetup{
		Config: map[string]string{"cookie": "uid=7; pass=abc"},
	})

	releases, err := idx.Search(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Equal(t, Authenticated, idx.State())
}

func TestCookieLoginWithoutCookie(t *testing.T) {
	tr := newTestTracker(t)
	idx, _ := newTestIndexer(t, tr, cookieLoginDefinition, testSetup{})

	err := idx.Login(context.Background())
	require.ErrorIs(t, err, ErrMissingCookie)
	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
}

func TestStaleSessionLogsInOnce(t *testing.T) {
	tr := newTestTracker(t)
	var logins, searches atomic.Int32
	tr.mux.HandleFunc("/login.php", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		_, _ = w.Write([]byte(loggedInPage))
	})
	tr.mux.HandleFunc("/browse.php", func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		_, _ = w.Write([]byte(`<table><tr class="row"><td class="name">Guest view</td></tr></table>`))
	})

	sessions := &memorySessions{data: map[string]string{"postlogin": "sid=old"}}
	idx, _ := newTestIndexer(t, tr, postLoginDefinition, testSetup{Sessions: sessions})
	require.Equal(t, "sid=old", idx.Cookies())

	_, err := idx.Search(context.Background(), Query{Q: "x"})
	require.ErrorIs(t, err, ErrStaleSession)
	var loginErr *LoginError
	require.ErrorAs(t, err, &loginErr)
	require.Equal(t, int32(1), logins.Load())
	require.Equal(t, int32(2), searches.Load())
	require.Equal(t, Failed, idx.State())
}

func TestStaleSessionRedirectRecovers(t *testing.T) {
	tr := newTestTracker(t)
	var logins atomic.Int32
	tr.mux.HandleFunc("/login.php", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "new"})
		_, _ = w.Write([]byte(loggedInPage))
	})
	tr.mux.HandleFunc("/browse.php", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("sid")
		if err != nil || cookie.Value != "new" {
			http.Redirect(w, r, "/login.php", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte(loggedInPage))
	})

	sessions := &memorySessions{data: map[string]string{"postlogin": "sid=old"}}
	idx, _ := newTestIndexer(t, tr, postLoginDefinition, testSetup{Sessions: sessions})

	releases, err := idx.Search(context.Background(), Query{Q: "x"})
	require.NoError(t, err)
	require.Len(t, releases, 1)
	require.Equal(t, int32(1), logins.Load())
	require.Equal(t, "sid=new", sessions.data["postlogin"])
}

func TestFormValues(t *testing.T) {
	doc := mustDocument(t, `<form>
<input name="a" value="1">
<input name="b">
<input type="radio" name="c" value="x">
<input type="radio" name="c" value="y" checked>
<input type="checkbox" name="d" checked>
<input type="file" name="e">
<select name="f"><option>first</option><option>second</option></select>
<textarea name="g">text</textarea>
</form>`)

	values := formValues(doc.Find("form"))
	require.Equal(t, "1", values.Get("a"))
	require.True(t, values.Has("b"))
	require.Equal(t, []string{"y"}, values["c"])
	require.Equal(t, "on", values.Get("d"))
	require.False(t, values.Has("e"))
	require.Equal(t, "first", values.Get("f"))
	require.Equal(t, "text", values.Get("g"))
}
