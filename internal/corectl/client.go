// Package corectl is a thin REST+WS client for the Mihomo core's
// external controller, backing the live-state endpoints the web UIs
// poll or stream (proxy groups, memory, traffic, connections, logs).
// The wire shape follows Mihomo's documented external-controller
// surface.
package corectl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// Client talks to one running core's external controller.
type Client struct {
	baseURL string
	secret  string
	// httpClient bounds one-shot REST calls; streamClient has no
	// whole-request timeout because /memory and /traffic are
	// long-lived NDJSON streams whose lifetime the caller's context
	// governs.
	httpClient   *http.Client
	streamClient *http.Client
}

// New builds a Client from the external-controller address (e.g.
// "127.0.0.1:9090") and an optional secret, as parsed from the active
// profile's YAML.
func New(addr, secret string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL:      strings.TrimSuffix(base, "/"),
		secret:       secret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		streamClient: &http.Client{},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do runs a request expecting a 2xx and no interesting body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Transport("core controller %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.Transport("core controller %s: HTTP %d", path, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Transport("core controller %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.Transport("core controller %s: HTTP %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ProxyGroup mirrors Mihomo's /proxies response shape for a single
// proxy or proxy group.
type ProxyGroup struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Now     string   `json:"now,omitempty"`
	All     []string `json:"all,omitempty"`
	History []struct {
		Time  string `json:"time"`
		Delay int    `json:"delay"`
	} `json:"history,omitempty"`
}

// Proxies fetches GET /proxies: every proxy and proxy group the core
// knows about.
func (c *Client) Proxies(ctx context.Context) (map[string]ProxyGroup, error) {
	var out struct {
		Proxies map[string]ProxyGroup `json:"proxies"`
	}
	if err := c.getJSON(ctx, "/proxies", &out); err != nil {
		return nil, err
	}
	return out.Proxies, nil
}

// Connection mirrors one entry of GET /connections.
type Connection struct {
	ID       string `json:"id"`
	Metadata struct {
		Network  string `json:"network"`
		Host     string `json:"host"`
		DestIP   string `json:"destinationIP"`
		DestPort string `json:"destinationPort"`
	} `json:"metadata"`
	Upload      int64    `json:"upload"`
	Download    int64    `json:"download"`
	Start       string   `json:"start"`
	Chains      []string `json:"chains"`
	Rule        string   `json:"rule"`
	RulePayload string   `json:"rulePayload"`
}

// ConnectionsSnapshot mirrors GET /connections.
type ConnectionsSnapshot struct {
	DownloadTotal int64        `json:"downloadTotal"`
	UploadTotal   int64        `json:"uploadTotal"`
	Connections   []Connection `json:"connections"`
}

// Connections fetches GET /connections.
func (c *Client) Connections(ctx context.Context) (ConnectionsSnapshot, error) {
	var out ConnectionsSnapshot
	if err := c.getJSON(ctx, "/connections", &out); err != nil {
		return ConnectionsSnapshot{}, err
	}
	return out, nil
}

// SwitchProxy selects name as the active proxy of group (PUT
// /proxies/{group}).
func (c *Client) SwitchProxy(ctx context.Context, group, name string) error {
	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/proxies/"+url.PathEscape(group), bytes.NewReader(payload))
}

// ProxyDelay runs the core's latency test for one proxy (GET
// /proxies/{name}/delay) and returns the measured delay in
// milliseconds.
func (c *Client) ProxyDelay(ctx context.Context, name, testURL string, timeoutMS int) (int, error) {
	q := url.Values{}
	q.Set("url", testURL)
	q.Set("timeout", strconv.Itoa(timeoutMS))
	var out struct {
		Delay int `json:"delay"`
	}
	if err := c.getJSON(ctx, "/proxies/"+url.PathEscape(name)+"/delay?"+q.Encode(), &out); err != nil {
		return 0, err
	}
	return out.Delay, nil
}

// CloseConnection terminates one tracked connection by id.
func (c *Client) CloseConnection(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/connections/"+url.PathEscape(id), nil)
}

// CloseAllConnections terminates every tracked connection.
func (c *Client) CloseAllConnections(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/connections", nil)
}

// MemorySample mirrors one line of GET /memory's NDJSON stream.
type MemorySample struct {
	InUse   int64 `json:"inuse"`
	OSLimit int64 `json:"oslimit"`
}

// TrafficSample mirrors one line of GET /traffic's NDJSON stream.
type TrafficSample struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

// streamNDJSON issues a GET against path and decodes one JSON object
// per line until ctx is cancelled or the body closes, handing each
// decoded value to onLine. Mihomo's /memory and /traffic endpoints
// are both long-lived chunked NDJSON streams rather than WebSockets.
func streamNDJSON(ctx context.Context, c *Client, path string, onLine func([]byte) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return errs.Transport("core controller %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.Transport("core controller %s: HTTP %d", path, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return errs.Decode("decoding %s stream: %v", path, err)
		}
		if err := onLine(raw); err != nil {
			return err
		}
	}
}

// StreamMemory relays GET /memory until ctx is cancelled.
func (c *Client) StreamMemory(ctx context.Context, onSample func(MemorySample) error) error {
	return streamNDJSON(ctx, c, "/memory", func(raw []byte) error {
		var s MemorySample
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Decode("decoding memory sample: %v", err)
		}
		return onSample(s)
	})
}

// StreamTraffic relays GET /traffic until ctx is cancelled.
func (c *Client) StreamTraffic(ctx context.Context, onSample func(TrafficSample) error) error {
	return streamNDJSON(ctx, c, "/traffic", func(raw []byte) error {
		var s TrafficSample
		if err := json.Unmarshal(raw, &s); err != nil {
			return errs.Decode("decoding traffic sample: %v", err)
		}
		return onSample(s)
	})
}

// LogEntry mirrors one frame of GET /logs's WebSocket stream.
type LogEntry struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// TailLogs opens the core's /logs WebSocket at the given verbosity
// level and relays each decoded frame to onEntry until ctx is
// cancelled or the connection drops.
func (c *Client) TailLogs(ctx context.Context, level string, onEntry func(LogEntry) error) error {
	wsURL, err := c.logsWebSocketURL(level)
	if err != nil {
		return err
	}

	header := http.Header{}
	if c.secret != "" {
		header.Set("Authorization", "Bearer "+c.secret)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return errs.Transport("dialing core log stream: %v", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		var entry LogEntry
		if err := conn.ReadJSON(&entry); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errs.Transport("reading core log stream: %v", err)
		}
		if err := onEntry(entry); err != nil {
			return err
		}
	}
}

func (c *Client) logsWebSocketURL(level string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errs.Validation("invalid core controller URL %q: %v", c.baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/logs"
	q := u.Query()
	if level != "" {
		q.Set("level", level)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
