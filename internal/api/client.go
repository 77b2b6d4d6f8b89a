// Package api is the typed client for the Clickcheck PHP backend.
package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://clickcheck.grupoclickglobal.com.br/api"

	maxResponseBytes = 4 << 20
)

// TokenLoader supplies the bearer token for outgoing calls. "" means anonymous.
type TokenLoader interface {
	Load(ctx context.Context) (string, error)
}

// Observer receives one callback per completed call. status is 0 when the
// request never got a response.
type Observer interface {
	ObserveRequest(method, endpoint string, status int, d time.Duration)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Tokens  TokenLoader
	Limiter *rate.Limiter
	Logger  *log.Logger
	// PlainBodies disables the {"_b64": ...} envelope on JSON object bodies.
	PlainBodies bool
	Observer    Observer
	// OnUnauthorized runs after any authenticated call answered with 401.
	OnUnauthorized func()
}

func New(baseURL string, tokens TokenLoader) *Client {
	c := &Client{BaseURL: baseURL, Tokens: tokens}
	c.EnsureDefaults()
	return c
}

func (c *Client) EnsureDefaults() {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

type call struct {
	method   string
	endpoint string
	query    url.Values
	body     any
	anon     bool
	noWrap   bool
	fallback string
}

func (c *Client) endpointURL(endpoint string, q url.Values) string {
	u := c.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// encodeBody marshals v like JSON.stringify does (no HTML escaping, no
// trailing newline) and wraps objects in the base64 envelope.
func encodeBody(v any, wrap bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	b := bytes.TrimRight(buf.Bytes(), "\n")
	if !wrap || len(b) == 0 || b[0] != '{' {
		return b, nil
	}
	return json.Marshal(envelope{B64: base64.StdEncoding.EncodeToString(b)})
}

type envelope struct {
	B64 string `json:"_b64"`
}

// unwrapBody returns the inner document when b is exactly a base64 envelope.
func unwrapBody(b []byte) []byte {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || t[0] != '{' || !bytes.Contains(t, []byte(`"_b64"`)) {
		return b
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(t, &m); err != nil || len(m) != 1 {
		return b
	}
	var s string
	if err := json.Unmarshal(m["_b64"], &s); err != nil {
		return b
	}
	inner, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return b
	}
	return inner
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.Tokens == nil {
		return "", nil
	}
	tok, err := c.Tokens.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return strings.TrimSpace(tok), nil
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	c.EnsureDefaults()

	var body io.Reader
	if cl.body != nil {
		b, err := encodeBody(cl.body, !c.PlainBodies && !cl.noWrap)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", cl.endpoint, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.endpointURL(cl.endpoint, cl.query), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	authed := false
	if !cl.anon {
		tok, err := c.token(ctx)
		if err != nil {
			return err
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
			authed = true
		}
	}
	return c.send(req, cl, authed, out)
}

func (c *Client) send(req *http.Request, cl call, authed bool, out any) error {
	reqID := uuid.New().String()
	req.Header.Set("X-Request-ID", reqID)
	label := cl.endpoint
	if a := cl.query.Get("action"); a != "" {
		label += "#" + a
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(req.Context()); err != nil {
			return err
		}
	}

	start := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		c.observe(cl.method, label, 0, time.Since(start))
		c.Logger.Printf("[API] error method=%s endpoint=%s reqId=%s err=%v", cl.method, label, reqID, err)
		return fmt.Errorf("%s %s: %w", cl.method, label, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	dur := time.Since(start)
	c.observe(cl.method, label, res.StatusCode, dur)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", cl.method, label, err)
	}
	raw = unwrapBody(raw)
	c.Logger.Printf("[API] method=%s endpoint=%s status=%d dur=%s reqId=%s", cl.method, label, res.StatusCode, dur.Round(time.Millisecond), reqID)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := newError(res.StatusCode, raw, cl.fallback)
		apiErr.RequestID = reqID
		if res.StatusCode == http.StatusUnauthorized && authed && c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w (body=%q)", cl.method, label, err, truncate(string(raw), 200))
	}
	return nil
}

func (c *Client) observe(method, endpoint string, status int, d time.Duration) {
	if c.Observer != nil {
		c.Observer.ObserveRequest(method, endpoint, status, d)
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// Raw issues an arbitrary authenticated JSON call. out may be nil.
func (c *Client) Raw(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	return c.do(ctx, call{method: method, endpoint: endpoint, query: query, body: body}, out)
}

func idQuery(id fmt.Stringer, kv ...string) url.Values {
	q := url.Values{}
	if id != nil && id.String() != "" {
		q.Set("id", id.String())
	}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Set(kv[i], kv[i+1])
	}
	return q
}
