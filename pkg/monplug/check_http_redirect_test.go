package monplug

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckHTTPRedirectOK(t *testing.T) {
	snc := newTestAgent(t)
	server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
		res.Header().Set("Location", "https://www.example.net/")
		res.WriteHeader(http.StatusMovedPermanently)
	}))
	defer server.Close()

	res := snc.RunCheck(context.Background(), "check_http_redirect",
		[]string{"url=" + server.URL, "expect=https://www.example.net/"})
	assert.Equalf(t, CheckExitOK, res.State, "redirect matches")
	assert.Regexpf(t, `^OK HTTP/1\.1 301 Moved permanently\. Redirect to https://www\.example\.net/`,
		string(res.BuildPluginOutput()), "output matches")
}

func TestCheckHTTPRedirectWrongTarget(t *testing.T) {
	snc := newTestAgent(t)
	server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
		res.Header().Set("Location", "https://elsewhere.example.net/")
		res.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	res := snc.RunCheck(context.Background(), "check_http_redirect",
		[]string{"url=" + server.URL, "expect=https://www.example.net/"})
	assert.Equalf(t, CheckExitCritical, res.State, "wrong target is critical")
	assert.Containsf(t, res.Output, "Redirect to wrong URL", "mismatch reported")
}

func TestCheckHTTPRedirectNoRedirect(t *testing.T) {
	snc := newTestAgent(t)
	server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
		res.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	res := snc.RunCheck(context.Background(), "check_http_redirect",
		[]string{"url=" + server.URL, "expect=https://www.example.net/"})
	assert.Equalf(t, CheckExitCritical, res.State, "plain 200 is critical")
	assert.Containsf(t, res.Output, "No redirect returned, got status 200", "status reported")
}

func TestCheckHTTPRedirectMissingLocation(t *testing.T) {
	snc := newTestAgent(t)
	server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
		res.WriteHeader(http.StatusMovedPermanently)
	}))
	defer server.Close()

	res := snc.RunCheck(context.Background(), "check_http_redirect",
		[]string{"url=" + server.URL, "expect=https://www.example.net/"})
	assert.Equalf(t, CheckExitCritical, res.State, "redirect without location is critical")
}

func TestCheckHTTPRedirectHostHeader(t *testing.T) {
	snc := newTestAgent(t)
	var seenHost string
	server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		seenHost = req.Host
		res.Header().Set("Location", "https://www.example.net/")
		res.WriteHeader(http.StatusMovedPermanently)
	}))
	defer server.Close()

	// connect to the test server but send the host header of the real site
	res := snc.RunCheck(context.Background(), "check_http_redirect",
		[]string{"url=http://www.example.net/", "expect=https://www.example.net/",
			"host=" + server.Listener.Addr().String(), "ipv4"})
	assert.Equalf(t, CheckExitOK, res.State, "redirect via host override")
	assert.Equalf(t, "www.example.net", seenHost, "host header carries the url host")
}

func TestCheckHTTPRedirectBadArgs(t *testing.T) {
	snc := newTestAgent(t)

	res := snc.RunCheck(context.Background(), "check_http_redirect", []string{"url=http://x/"})
	assert.Equalf(t, CheckExitUnknown, res.State, "missing expect is UNKNOWN")

	res = snc.RunCheck(context.Background(), "check_http_redirect",
		[]string{"url=ftp://x/", "expect=http://y/"})
	assert.Equalf(t, CheckExitUnknown, res.State, "unsupported scheme is UNKNOWN")
	assert.Containsf(t, res.Output, "cannot handle scheme", "scheme problem reported")
}
