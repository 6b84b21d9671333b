package monplug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBECSServer(t *testing.T, scopes []DHCPScope) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/session/login", func(res http.ResponseWriter, req *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&payload))
		assert.Equalf(t, "monitor", payload["username"], "username sent")
		res.Header().Set("Content-Type", "application/json")
		_, _ = res.Write([]byte(`{"sessionid":"test-session"}`))
	})
	mux.HandleFunc("/session/logout", func(res http.ResponseWriter, _ *http.Request) {
		_, _ = res.Write([]byte(`{}`))
	})
	mux.HandleFunc("/dhcp/scopereport", func(res http.ResponseWriter, req *http.Request) {
		assert.Equalf(t, "test-session", req.Header.Get("X-BECS-Session"), "session header carried")
		res.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(res).Encode(map[string]interface{}{"scopes": scopes}))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func becsTestAgent(t *testing.T, eapi string) *Agent {
	t.Helper()

	snc := newTestAgent(t)
	snc.config.BECS = BECSConfig{EAPI: eapi, Username: "monitor", Password: "secret", ScopeOID: 4711}

	return snc
}

func TestCheckDHCPScopesOK(t *testing.T) {
	server := startBECSServer(t, []DHCPScope{
		{Name: "scope-a", Free: 120, Assigned: 80, Size: 200},
		{Name: "scope-b", Free: 50, Assigned: 150, Size: 200},
	})
	snc := becsTestAgent(t, server.URL)

	res := snc.RunCheck(context.Background(), "check_dhcp_scopes", []string{})
	assert.Equalf(t, CheckExitOK, res.State, "plenty of free addresses")
	assert.Containsf(t, res.Output, "2 DHCP scopes, 170 free addresses total", "totals reported")
	assert.Lenf(t, res.Details, 2, "one detail per scope")
}

func TestCheckDHCPScopesLimits(t *testing.T) {
	server := startBECSServer(t, []DHCPScope{
		{Name: "scope-a", Free: 15, Assigned: 185, Size: 200},
		{Name: "scope-b", Free: 2, Assigned: 198, Size: 200},
	})
	snc := becsTestAgent(t, server.URL)

	res := snc.RunCheck(context.Background(), "check_dhcp_scopes", []string{})
	assert.Equalf(t, CheckExitCritical, res.State, "worst scope wins")
	assert.Containsf(t, res.Output, "2 of 2 DHCP scopes low", "problem count reported")

	res = snc.RunCheck(context.Background(), "check_dhcp_scopes", []string{"free_warning=10", "free_critical=1"})
	assert.Equalf(t, CheckExitWarning, res.State, "custom bounds applied")
}

func TestCheckDHCPScopesIcinga(t *testing.T) {
	server := startBECSServer(t, []DHCPScope{
		{Name: "scope-a", Free: 120, Assigned: 80, Size: 200},
	})
	snc := becsTestAgent(t, server.URL)

	dir := t.TempDir()
	commandFile := filepath.Join(dir, "icinga2.cmd")
	require.NoError(t, os.WriteFile(commandFile, nil, 0o600))
	snc.config.Icinga = IcingaConfig{
		CommandFile:   commandFile,
		HostName:      "becs.example.net",
		ScopeConfFile: filepath.Join(dir, "dhcp_scopes.conf"),
		ReloadCommand: "true",
		ScopeTemplate: "dhcp-scope-free-addresses",
	}

	res := snc.RunCheck(context.Background(), "check_dhcp_scopes", []string{"icinga"})
	assert.Equalf(t, CheckExitOK, res.State, "check itself ok")

	written, err := os.ReadFile(commandFile)
	require.NoError(t, err)
	assert.Containsf(t, string(written),
		"PROCESS_SERVICE_CHECK_RESULT;becs.example.net;DHCP Scope scope-a;0;120 free addresses, 80 assigned addresses",
		"passive result written")

	conf, err := os.ReadFile(snc.config.Icinga.ScopeConfFile)
	require.NoError(t, err)
	assert.Containsf(t, string(conf), `apply Service "DHCP Scope scope-a" {`, "service block generated")
	assert.Containsf(t, string(conf), `import "dhcp-scope-free-addresses"`, "template imported")

	// unchanged config must not rewrite the file
	before, err := os.Stat(snc.config.Icinga.ScopeConfFile)
	require.NoError(t, err)
	res = snc.RunCheck(context.Background(), "check_dhcp_scopes", []string{"icinga"})
	assert.Equalf(t, CheckExitOK, res.State, "second run ok")
	after, err := os.Stat(snc.config.Icinga.ScopeConfFile)
	require.NoError(t, err)
	assert.Equalf(t, before.ModTime(), after.ModTime(), "identical config left untouched")
}

func TestCheckDHCPScopesErrors(t *testing.T) {
	snc := newTestAgent(t)
	res := snc.RunCheck(context.Background(), "check_dhcp_scopes", []string{})
	assert.Equalf(t, CheckExitUnknown, res.State, "missing config is UNKNOWN")
	assert.Containsf(t, res.Output, "no becs eapi endpoint", "config problem reported")

	server := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, _ *http.Request) {
		http.Error(res, "login denied", http.StatusForbidden)
	}))
	defer server.Close()

	snc = becsTestAgent(t, server.URL)
	res = snc.RunCheck(context.Background(), "check_dhcp_scopes", []string{})
	assert.Equalf(t, CheckExitUnknown, res.State, "login failure is UNKNOWN")
	assert.Truef(t, strings.Contains(res.Output, "http 403"), "http status reported: %s", res.Output)
}
