package monplug

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

func init() {
	AvailableChecks["check_http_redirect"] = CheckEntry{"check_http_redirect", func() CheckHandler { return NewCheckHTTPRedirect() }}
}

// CheckHTTPRedirect verifies that an URL answers with a 301/302 redirect
// pointing at the expected target.
type CheckHTTPRedirect struct {
	url          string
	expected     string
	hostOverride string
	ipv4         bool
	ipv6         bool
}

func NewCheckHTTPRedirect() *CheckHTTPRedirect {
	return &CheckHTTPRedirect{}
}

func (l *CheckHTTPRedirect) Build() *CheckData {
	return &CheckData{
		name:        "check_http_redirect",
		description: "Checks that an URL redirects (301/302) to the expected target URL.",
		args: map[string]CheckArgument{
			"url":    {value: &l.url, description: "URL to retrieve"},
			"expect": {value: &l.expected, description: "Expected redirect target URL"},
			"host":   {value: &l.hostOverride, description: "Connect to this host instead of the URL host"},
			"ipv4":   {value: &l.ipv4, description: "Force an IPv4 connection"},
			"ipv6":   {value: &l.ipv6, description: "Force an IPv6 connection"},
		},
		timeout: 10,
	}
}

func (l *CheckHTTPRedirect) Check(ctx context.Context, _ *Agent, check *CheckData) (*CheckResult, error) {
	if l.url == "" || l.expected == "" {
		return nil, fmt.Errorf("url and expect arguments are required")
	}

	parsed, err := url.Parse(l.url)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %s", l.url, err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("cannot handle scheme %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("no network location specified")
	}

	resp, err := l.fetchHead(ctx, check, parsed)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	res := &CheckResult{}

	if resp.StatusCode != http.StatusMovedPermanently && resp.StatusCode != http.StatusFound {
		res.Finalize(CheckExitCritical, fmt.Sprintf("No redirect returned, got status %d", resp.StatusCode))

		return res, nil
	}

	location := resp.Header.Get("Location")
	switch {
	case location == "":
		res.Finalize(CheckExitCritical, "No redirect header")
	case location != l.expected:
		res.Finalize(CheckExitCritical, fmt.Sprintf("Redirect to wrong URL: got '%s' expected '%s'", location, l.expected))
	default:
		res.Finalize(CheckExitOK, fmt.Sprintf("HTTP/%d.%d %d %s. Redirect to %s",
			resp.ProtoMajor, resp.ProtoMinor, resp.StatusCode, redirectStatusText(resp.StatusCode), location))
	}

	return res, nil
}

// fetchHead issues a HEAD request without following the redirect. The
// Host header carries the URL host even when the connection goes to a
// different address.
func (l *CheckHTTPRedirect) fetchHead(ctx context.Context, check *CheckData, parsed *url.URL) (*http.Response, error) {
	network := "tcp"
	switch {
	case l.ipv4:
		network = "tcp4"
	case l.ipv6:
		network = "tcp6"
	}

	dialer := &net.Dialer{Timeout: time.Duration(check.timeout * float64(time.Second))}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	target := *parsed
	if l.hostOverride != "" {
		target.Host = l.hostOverride
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("request %s: %s", target.String(), err.Error())
	}
	req.Host = parsed.Host

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection to %s failed: %s", target.Host, err.Error())
	}

	return resp, nil
}

func redirectStatusText(code int) string {
	switch code {
	case http.StatusMovedPermanently:
		return "Moved permanently"
	case http.StatusFound:
		return "Found/Moved temporarily"
	}

	return http.StatusText(code)
}
