// Package draftfeed connects to the vendor draft room. It implements the
// transport contract the connection manager supervises: a websocket link
// for the event stream plus an HTTP session endpoint used as the
// lightweight recovery probe before each redial.
package draftfeed

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
	"nhooyr.io/websocket"

	"github.com/riskibarqy/draftwire/internal/platform/logging"
	"github.com/riskibarqy/draftwire/internal/platform/resilience"
)

const (
	defaultDialTimeout    = 10 * time.Second
	defaultWriteTimeout   = 5 * time.Second
	defaultSessionTimeout = 10 * time.Second
)

var tokenParamRegex = regexp.MustCompile(`(?i)token=[^&\s"']+`)

// errFeedTransient marks failures worth retrying and worth counting
// against the circuit breaker. Anything else is a definitive vendor
// answer and passes through unwrapped.
var errFeedTransient = crerr.New("draft feed transient failure")

var errNotConnected = crerr.New("draft feed is not connected")

type ClientConfig struct {
	// FeedURL is the websocket endpoint of the draft room.
	FeedURL string
	// SessionURL is the HTTP endpoint that renews the feed session.
	SessionURL string
	Token      string
	// Origin is sent on the websocket handshake when the vendor checks it.
	Origin         string
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	SessionTimeout time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client is safe for the single-reader single-writer pattern the
// connection manager runs: one goroutine reads, the manager dials and
// closes, and session refreshes may arrive from any goroutine.
type Client struct {
	feedURL        string
	sessionURL     string
	origin         string
	dialTimeout    time.Duration
	writeTimeout   time.Duration
	sessionTimeout time.Duration
	logger         *logging.Logger
	httpClient     *fasthttp.Client
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight

	mu    sync.Mutex
	conn  *websocket.Conn
	token string
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	sessionTimeout := cfg.SessionTimeout
	if sessionTimeout <= 0 {
		sessionTimeout = defaultSessionTimeout
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		feedURL:        strings.TrimSpace(cfg.FeedURL),
		sessionURL:     strings.TrimSpace(cfg.SessionURL),
		origin:         strings.TrimSpace(cfg.Origin),
		dialTimeout:    dialTimeout,
		writeTimeout:   writeTimeout,
		sessionTimeout: sessionTimeout,
		logger:         logger,
		httpClient: &fasthttp.Client{
			Name:         "draftwire",
			ReadTimeout:  sessionTimeout,
			WriteTimeout: sessionTimeout,
		},
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		token:          strings.TrimSpace(cfg.Token),
	}
}

// Dial opens a fresh websocket connection, replacing and closing any
// previous one.
func (c *Client) Dial(ctx context.Context) error {
	if c.feedURL == "" {
		return crerr.New("feed url is not configured")
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	opts := &websocket.DialOptions{HTTPHeader: c.dialHeaders()}
	conn, _, err := websocket.Dial(dialCtx, c.feedURL, opts)
	if err != nil {
		return fmt.Errorf("%w: dial draft room: %s", errFeedTransient, c.sanitize(err.Error()))
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		_ = old.Close(websocket.StatusNormalClosure, "superseded")
	}

	c.logger.InfoContext(ctx, "draft feed connected", "url", redactFeedURL(c.feedURL))
	return nil
}

// ReadMessage blocks until the next text frame arrives or ctx is
// cancelled. Non-text frames are not part of the feed grammar and are
// skipped.
func (c *Client) ReadMessage(ctx context.Context) (string, error) {
	conn := c.current()
	if conn == nil {
		return "", errNotConnected
	}

	for {
		msgType, payload, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if status := websocket.CloseStatus(err); status != -1 {
				return "", fmt.Errorf("%w: draft room closed connection status=%v", errFeedTransient, status)
			}
			return "", fmt.Errorf("%w: read frame: %s", errFeedTransient, c.sanitize(err.Error()))
		}
		if msgType != websocket.MessageText {
			c.logger.DebugContext(ctx, "skipping non-text frame", "bytes", len(payload))
			continue
		}
		return string(payload), nil
	}
}

// WriteMessage sends one text frame, composed through a pooled buffer.
func (c *Client) WriteMessage(ctx context.Context, frame string) error {
	conn := c.current()
	if conn == nil {
		return errNotConnected
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.WriteString(frame)

	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: write frame: %s", errFeedTransient, c.sanitize(err.Error()))
	}
	return nil
}

// RefreshSession renews the vendor session over HTTP. Concurrent callers
// share one probe, and repeated failures open the circuit breaker so a
// dead session endpoint is not hammered during an outage.
func (c *Client) RefreshSession(ctx context.Context) error {
	if c.sessionURL == "" {
		// No session endpoint configured; the redial alone has to do.
		return nil
	}

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "session refresh rejected by circuit breaker", "state", c.breaker.State())
			return fmt.Errorf("%w: session endpoint is temporarily unavailable", errFeedTransient)
		}
	}

	_, err, _ := c.flight.Do("refresh-session", func() (any, error) {
		refreshErr := c.refreshOnce(ctx)
		if c.circuitEnabled {
			if refreshErr != nil && stderrors.Is(refreshErr, errFeedTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return nil, refreshErr
	})
	return err
}

func (c *Client) refreshOnce(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.sessionURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if token := c.currentToken(); token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}

	timeout := c.sessionTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return ctx.Err()
	}

	if err := c.httpClient.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("%w: refresh session: %s", errFeedTransient, c.sanitize(err.Error()))
	}

	status := resp.StatusCode()
	body := resp.Body()
	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
	case isRetryableStatus(status):
		return fmt.Errorf("%w: session endpoint status=%d body=%s", errFeedTransient, status, c.sanitize(abbreviateBody(body)))
	default:
		return fmt.Errorf("session endpoint status=%d body=%s", status, c.sanitize(abbreviateBody(body)))
	}

	var envelope sessionEnvelope
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode session payload: %w", err)
	}
	if rotated := strings.TrimSpace(envelope.Token); rotated != "" {
		c.setToken(rotated)
	}

	c.logger.InfoContext(ctx, "draft session refreshed",
		"url", redactFeedURL(c.sessionURL),
		"expires_in_ms", envelope.ExpiresInMs,
	)
	return nil
}

// Close performs the websocket close handshake. Errors are swallowed:
// during recovery the connection being closed is usually already dead.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(websocket.StatusNormalClosure, "client shutdown"); err != nil {
		c.logger.Debug("websocket close", "error", c.sanitize(err.Error()))
	}
	return nil
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) dialHeaders() http.Header {
	headers := http.Header{}
	if c.origin != "" {
		headers.Set("Origin", c.origin)
	}
	if token := c.currentToken(); token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	return headers
}

// sanitize strips the session token from text destined for logs or
// wrapped errors.
func (c *Client) sanitize(value string) string {
	return sanitizeSensitiveText(value, c.currentToken())
}

type sessionEnvelope struct {
	Token       string `json:"token"`
	ExpiresInMs int64  `json:"expires_in_ms"`
}

// IsTransient reports whether err is a failure the connection manager
// should keep retrying.
func IsTransient(err error) bool {
	return err != nil && stderrors.Is(err, errFeedTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sanitizeSensitiveText(value, token string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if token != "" {
		value = strings.ReplaceAll(value, token, "***")
	}
	return tokenParamRegex.ReplaceAllString(value, "token=REDACTED")
}

func redactFeedURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return tokenParamRegex.ReplaceAllString(rawURL, "token=REDACTED")
	}
	query := parsed.Query()
	if query.Has("token") {
		query.Set("token", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}
