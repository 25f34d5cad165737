package suno

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/igolaizola/sunokit/pkg/queue"
	"github.com/igolaizola/sunokit/pkg/relay"
	"github.com/igolaizola/sunokit/pkg/session"
	"github.com/rs/zerolog"
)

const (
	originURL = "https://studio-api.suno.ai"
	clerkURL  = "https://clerk.suno.com"

	// DefaultTimeout bounds every outbound call. Generation can be slow.
	DefaultTimeout = 10 * time.Minute
	// DefaultConcurrency is the number of generation requests allowed in
	// flight at the same time.
	DefaultConcurrency = 10
)

type Client struct {
	client      *http.Client
	logger      zerolog.Logger
	account     string
	cookie      string
	cookieStore CookieStore
	baseURL     string
	targetHost  string
	clerkURL    string
	timeout     time.Duration
	relays      *relay.Selector
	queue       *queue.Queue
	calls       *registry

	// Session and token state. session and renewErr are guarded by
	// renewLock, token is read without locking.
	renewLock lock
	session   string
	renewErr  error
	renewals  atomic.Uint64
	token     atomic.Pointer[token]
}

type Config struct {
	// Account names the credential in logs and submissions.
	Account string
	// Cookie is the raw identity provider cookie. When empty it is read
	// from CookieStore.
	Cookie      string
	CookieStore CookieStore
	Client      *http.Client
	Logger      *zerolog.Logger
	BaseURL     string
	ClerkURL    string
	Relays      []relay.Relay
	// RelayIntn overrides the random source used to pick relays.
	RelayIntn   func(int) int
	Concurrency int
	Timeout     time.Duration
}

type fileCookieStore struct {
	path     string
	fallback string
}

func (s *fileCookieStore) GetCookie(ctx context.Context) (string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("suno: couldn't read cookie file: %w", err)
	}
	if cookie := strings.TrimSpace(string(b)); cookie != "" {
		return cookie, nil
	}
	return s.fallback, nil
}

func (s *fileCookieStore) SetCookie(ctx context.Context, cookie string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("suno: couldn't create cookie dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(cookie+"\n"), 0600); err != nil {
		return fmt.Errorf("suno: couldn't write cookie file: %w", err)
	}
	return nil
}

// NewCookieStore returns a cookie store backed by the file at path. Until
// the file holds a cookie, fallback is returned.
func NewCookieStore(path, fallback string) CookieStore {
	return &fileCookieStore{
		path:     path,
		fallback: fallback,
	}
}

type CookieStore interface {
	GetCookie(context.Context) (string, error)
	SetCookie(context.Context, string) error
}

func New(cfg *Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = originURL
	}
	var targetHost string
	if u, err := url.Parse(baseURL); err == nil {
		targetHost = u.Host
	}
	clerk := strings.TrimRight(cfg.ClerkURL, "/")
	if clerk == "" {
		clerk = clerkURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Client{
		client:      client,
		logger:      logger.With().Str("account", cfg.Account).Logger(),
		account:     cfg.Account,
		cookie:      cfg.Cookie,
		cookieStore: cfg.CookieStore,
		baseURL:     baseURL,
		targetHost:  targetHost,
		clerkURL:    clerk,
		timeout:     timeout,
		relays:      relay.New(cfg.Relays, cfg.RelayIntn),
		queue:       queue.New(concurrency),
		calls:       newRegistry(),
		renewLock:   newLock(),
	}
}

// Start performs the session handshake and obtains the first token.
func (c *Client) Start(ctx context.Context) error {
	cookie := c.cookie
	if cookie == "" && c.cookieStore != nil {
		var err error
		cookie, err = c.cookieStore.GetCookie(ctx)
		if err != nil {
			return fail("start", ErrHandshake, err)
		}
	}
	if cookie == "" {
		return fail("start", ErrHandshake, errors.New("cookie is empty"))
	}
	if err := session.SetCookies(c.client, c.clerkURL, cookie); err != nil {
		return fail("start", ErrHandshake, err)
	}
	if err := c.handshake(ctx); err != nil {
		return fail("start", ErrHandshake, err)
	}
	if _, err := c.ensureFresh(ctx); err != nil {
		return fail("start", ErrTokenRenewal, err)
	}
	c.logger.Debug().Msg("suno: client started")
	return nil
}

// Stop saves the identity provider cookies to the cookie store, if any.
func (c *Client) Stop(ctx context.Context) error {
	if c.cookieStore == nil {
		return nil
	}
	cookie, err := session.GetCookies(c.client, c.clerkURL)
	if err != nil {
		return fmt.Errorf("suno: couldn't get cookie: %w", err)
	}
	if cookie == "" {
		return nil
	}
	return c.cookieStore.SetCookie(ctx, cookie)
}

// Cancel aborts every in-flight call made with the given trace id. The
// aborted calls fail with ErrTimeout.
func (c *Client) Cancel(traceID string) bool {
	return c.calls.stop(traceID)
}

// Queue returns the admission queue used for generation requests.
func (c *Client) Queue() *queue.Queue {
	return c.queue
}

type request struct {
	op     string
	method string
	url    string
	in     any
	out    any
	relay  *relay.Relay
	bearer bool
	// shape is the failure kind used when the response can't be decoded.
	shape error
}

// do performs a single call. Errors are returned classified.
func (c *Client) do(ctx context.Context, r *request) error {
	id, ok := traceID(ctx)
	if !ok {
		id = uuid.NewString()
	}
	ctx, abort := context.WithCancelCause(ctx)
	defer abort(nil)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	remove := c.calls.add(id, abort)
	defer remove()

	var body []byte
	var reqBody io.Reader
	if r.in != nil {
		var err error
		body, err = json.Marshal(r.in)
		if err != nil {
			return fail(r.op, ErrTransport, fmt.Errorf("couldn't marshal request body: %w", err))
		}
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, reqBody)
	if err != nil {
		return fail(r.op, ErrTransport, fmt.Errorf("couldn't create request: %w", err))
	}
	c.addHeaders(req, r, id)

	log := c.logger.With().Str("op", r.op).Str("trace_id", id).Logger()
	if r.relay != nil {
		log = log.With().Str("relay", r.relay.ID).Logger()
	}
	log.Debug().Str("method", r.method).Str("url", r.url).RawJSON("body", jsonOrNull(body)).Msg("suno: request")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return classifyCall(ctx, r.op, fmt.Errorf("couldn't %s %s: %w", r.method, r.url, err))
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyCall(ctx, r.op, fmt.Errorf("couldn't read response body: %w", err))
	}
	log.Debug().Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Str("body", string(respBody)).Msg("suno: response")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMessage := string(respBody)
		if len(errMessage) > 100 {
			errMessage = errMessage[:100] + "..."
		}
		return fail(r.op, ErrTransport, fmt.Errorf("%s %s returned: %w", r.method, r.url, &StatusError{
			Code:    resp.StatusCode,
			Message: errMessage,
		}))
	}
	if r.out != nil {
		if err := json.Unmarshal(respBody, r.out); err != nil {
			shape := r.shape
			if shape == nil {
				shape = ErrResponse
			}
			return fail(r.op, shape, fmt.Errorf("couldn't unmarshal response body (%T): %w", r.out, err))
		}
	}
	return nil
}

func jsonOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}

// studioURL returns the url of an api path on the relay or the origin.
func (c *Client) studioURL(r *relay.Relay, path string) string {
	base := c.baseURL
	if r != nil {
		base = strings.TrimRight(r.Server, "/")
	}
	return fmt.Sprintf("%s/api/%s", base, path)
}

func (c *Client) addHeaders(req *http.Request, r *request, id string) {
	req.Header.Set("accept", "*/*")
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	if r.in != nil {
		req.Header.Set("content-type", "application/json")
	}
	if r.bearer {
		if token := c.Token(); token != "" {
			req.Header.Set("authorization", fmt.Sprintf("Bearer %s", token))
		}
	}
	req.Header.Set("origin", "https://suno.com")
	req.Header.Set("referer", "https://suno.com/")
	req.Header.Set("user-agent", `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36`)

	// Relays forward the request to the target host.
	if r.relay != nil {
		req.Header.Set("X-Proxy-Api-Key", r.relay.Key)
		req.Header.Set("X-Target-Host", c.targetHost)
		req.Header.Set("X-Trace-Id", id)
		req.Header.Set("X-Start-At", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
}
