package monplug

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BECSClient talks to the BECS EAPI. Sessions are explicit: Login
// fetches a session token which all further requests carry, Logout
// releases it on the server.
type BECSClient struct {
	baseURL   string
	username  string
	password  string
	sessionID string
	client    *http.Client
}

// DHCPScope is the per scope utilization summary returned by the EAPI.
type DHCPScope struct {
	Name     string `json:"name"`
	Free     int64  `json:"free"`
	Assigned int64  `json:"assigned"`
	Size     int64  `json:"size"`
}

func NewBECSClient(conf *BECSConfig, timeout float64) *BECSClient {
	return &BECSClient{
		baseURL:  strings.TrimRight(conf.EAPI, "/"),
		username: conf.Username,
		password: conf.Password,
		client: &http.Client{
			Timeout: time.Duration(timeout * float64(time.Second)),
		},
	}
}

// Login opens a session.
func (b *BECSClient) Login(ctx context.Context) error {
	var response struct {
		SessionID string `json:"sessionid"`
	}
	payload := map[string]interface{}{
		"username": b.username,
		"password": b.password,
	}
	if err := b.call(ctx, "session/login", payload, &response); err != nil {
		return err
	}
	if response.SessionID == "" {
		return fmt.Errorf("becs login failed: no session id returned")
	}
	b.sessionID = response.SessionID

	return nil
}

// Logout releases the session. Errors are logged only, the check result
// does not depend on a clean logout.
func (b *BECSClient) Logout(ctx context.Context) {
	if b.sessionID == "" {
		return
	}
	if err := b.call(ctx, "session/logout", map[string]interface{}{}, nil); err != nil {
		log.Debugf("becs logout failed: %s", err.Error())
	}
	b.sessionID = ""
}

// DHCPScopeReport fetches the utilization summary for all DHCP scopes
// below the given object id.
func (b *BECSClient) DHCPScopeReport(ctx context.Context, oid int64) ([]DHCPScope, error) {
	var response struct {
		Scopes []DHCPScope `json:"scopes"`
	}
	payload := map[string]interface{}{
		"oid": oid,
	}
	if err := b.call(ctx, "dhcp/scopereport", payload, &response); err != nil {
		return nil, err
	}

	return response.Scopes, nil
}

func (b *BECSClient) call(ctx context.Context, path string, payload, response interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("becs request: %s", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/"+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("becs request: %s", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if b.sessionID != "" {
		req.Header.Set("X-BECS-Session", b.sessionID)
	}

	res, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("becs request %s: %s", path, err.Error())
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("becs response %s: %s", path, err.Error())
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("becs response %s: http %d: %s", path, res.StatusCode, strings.TrimSpace(string(data)))
	}
	if response == nil {
		return nil
	}
	if err := json.Unmarshal(data, response); err != nil {
		return fmt.Errorf("becs response %s: %s", path, err.Error())
	}

	return nil
}
