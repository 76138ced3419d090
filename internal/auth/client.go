package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrUnauthorized = errors.New("invalid credentials")
	ErrUnavailable  = errors.New("auth service unavailable")
)

type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth service: %d %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Code == fiber.StatusUnauthorized || e.Code == fiber.StatusForbidden {
		return ErrUnauthorized
	}
	if e.Code >= 500 {
		return ErrUnavailable
	}
	return nil
}

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	MaxFailures       uint32
	BreakerInterval   time.Duration
	BreakerTimeout    time.Duration
	RequestsPerSecond float64
	Burst             int
	Verifier          *Verifier
}

// Client talks to the external auth service and tracks the signed-in
// identity for the process.
type Client struct {
	baseURL  string
	timeout  time.Duration
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	verifier *Verifier
	log      *zap.SugaredLogger

	mu        sync.RWMutex
	current   *Identity
	listeners map[int]func(*Identity)
	nextID    int
}

func NewClient(opts Options, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.Verifier == nil {
		opts.Verifier = &Verifier{}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	st := gobreaker.Settings{
		Name:        "auth",
		MaxRequests: 1,
		Interval:    opts.BreakerInterval,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Infow("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
		},
		// a rejected password is an answer, not an outage
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.Code < 500)
		},
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		timeout:   opts.Timeout,
		cb:        gobreaker.NewCircuitBreaker(st),
		limiter:   rate.NewLimiter(limit, opts.Burst),
		verifier:  opts.Verifier,
		log:       log,
		listeners: map[int]func(*Identity){},
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	body, err := c.post(ctx, "/api/v1/auth/login", credentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, err
	}
	id, err := c.identityFrom(body, email)
	if err != nil {
		return nil, err
	}
	c.setCurrent(id)
	return id, nil
}

// Register creates the account. When the service does not hand out tokens
// on registration the client signs in right after.
func (c *Client) Register(ctx context.Context, email, password string) (*Identity, error) {
	body, err := c.post(ctx, "/api/v1/auth/register", credentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, err
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err == nil && tr.AccessToken == "" {
		return c.SignIn(ctx, email, password)
	}
	id, err := c.identityFrom(body, email)
	if err != nil {
		return nil, err
	}
	c.setCurrent(id)
	return id, nil
}

// SignOut always clears the local identity; the error reports a failed
// server-side logout only.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	if cur == nil {
		return nil
	}

	_, err := c.post(ctx, "/api/v1/auth/logout", struct{}{}, cur.AccessToken)
	c.setCurrent(nil)
	if err != nil {
		c.log.Warnw("remote logout failed", "user_id", cur.UserID, "error", err)
		return err
	}
	return nil
}

// Restore installs a previously saved identity without contacting the
// service.
func (c *Client) Restore(id *Identity) {
	c.setCurrent(id)
}

func (c *Client) Current() *Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// OnIdentityChange calls fn with the current identity right away and again
// after every sign-in or sign-out. fn receives nil when signed out.
func (c *Client) OnIdentityChange(fn func(*Identity)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	cur := c.current
	c.mu.Unlock()

	fn(cur)
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) setCurrent(id *Identity) {
	c.mu.Lock()
	c.current = id
	fns := make([]func(*Identity), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

func (c *Client) identityFrom(body []byte, email string) (*Identity, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", ErrUnavailable)
	}

	id := &Identity{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresAt > 0 {
		id.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	}
	if id.Email == "" {
		id.Email = email
	}
	if id.UserID == "" {
		uid, err := c.verifier.UserID(tr.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("read access token: %w", err)
		}
		id.UserID = uid
	}
	return id, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, token string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.cb.Execute(func() (interface{}, error) {
		a := fiber.Post(c.baseURL + path)
		a.JSON(payload).Timeout(c.timeout)
		if token != "" {
			a.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
		if err := a.Parse(); err != nil {
			fiber.ReleaseAgent(a)
			return nil, err
		}
		code, body, errs := a.Bytes()
		if len(errs) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
		}
		if code >= 300 {
			return nil, &StatusError{Code: code, Message: errorMessage(body)}
		}
		return body, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return strings.TrimSpace(string(body))
}
