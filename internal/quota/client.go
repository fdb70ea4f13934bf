package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultUsageURL = "https://api.anthropic.com/api/oauth/usage"
	defaultTokenURL = "https://platform.claude.com/v1/oauth/token"

	oauthClientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	oauthScopes   = "user:profile user:inference user:sessions:claude_code"

	anthropicBeta = "oauth-2025-04-20"
	userAgent     = "claudeusage"

	// DefaultTimeout bounds every network call. Failed calls are not
	// retried; the next scheduled refresh is the retry mechanism.
	DefaultTimeout = 15 * time.Second

	// refreshBuffer is how close to expiry the access token may get
	// before a proactive refresh.
	refreshBuffer = 5 * time.Minute
)

type usageResponse struct {
	FiveHour       *quotaBucket `json:"five_hour"`
	SevenDay       *quotaBucket `json:"seven_day"`
	SevenDayOpus   *quotaBucket `json:"seven_day_opus"`
	SevenDaySonnet *quotaBucket `json:"seven_day_sonnet"`
}

type quotaBucket struct {
	Utilization *float64 `json:"utilization"`
	ResetsAt    string   `json:"resets_at"`
}

type tokenRefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // seconds
}

// Client owns the cached OAuth credential and fetches quota data from
// the usage API. FetchQuotas never fails outward: every error degrades
// to the Empty result with the cause logged. Calls are serialized; the
// cached credential is mutated only under the mutex.
type Client struct {
	httpClient *http.Client
	stores     []CredentialStore
	usageURL   string
	tokenURL   string
	now        func() time.Time
	log        zerolog.Logger

	mu   sync.Mutex
	cred *Credential
	doc  Document
}

func NewClient(timeout time.Duration, log zerolog.Logger) *Client {
	return newClient(defaultStores(), timeout, log)
}

func newClient(stores []CredentialStore, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		stores:     stores,
		usageURL:   defaultUsageURL,
		tokenURL:   defaultTokenURL,
		now:        time.Now,
		log:        log,
	}
	return c
}

// FetchQuotas loads credentials if needed, refreshes the access token
// when it is within the refresh buffer of expiry, calls the usage
// endpoint and parses the result. Any failure yields Empty.
func (c *Client) FetchQuotas(ctx context.Context) Quotas {
	c.mu.Lock()
	defer c.mu.Unlock()

	quotas, err := c.fetchLocked(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("quota fetch failed")
		return Empty()
	}
	return quotas
}

func (c *Client) fetchLocked(ctx context.Context) (Quotas, error) {
	if err := c.loadCredentialsIfNeeded(); err != nil {
		return Quotas{}, err
	}

	if c.needsRefresh() {
		c.log.Info().Msg("access token expiring soon, refreshing")
		if err := c.refreshToken(ctx); err != nil {
			return Quotas{}, err
		}
	}

	resp, err := c.callUsageAPI(ctx)
	if err != nil {
		return Quotas{}, err
	}

	quotas := c.parseResponse(resp)
	c.log.Debug().
		Bool("valid", quotas.IsValid()).
		Msg("quotas fetched")
	return quotas, nil
}

// loadCredentialsIfNeeded walks the store chain until one yields a
// usable document. The full document is cached so unknown keys survive
// the rewrite after a token refresh.
func (c *Client) loadCredentialsIfNeeded() error {
	if c.cred != nil && c.cred.AccessToken != "" {
		return nil
	}
	c.cred = nil
	c.doc = nil

	for _, store := range c.stores {
		doc, err := store.Load()
		if err != nil {
			continue
		}
		if cred, ok := parseDocument(doc); ok {
			c.cred = &cred
			c.doc = doc
			return nil
		}
	}
	return ErrNoCredentials
}

func (c *Client) needsRefresh() bool {
	if c.cred.ExpiresAt == 0 {
		return true
	}
	nowMs := float64(c.now().UnixMilli())
	bufferMs := float64(refreshBuffer.Milliseconds())
	return nowMs+bufferMs >= c.cred.ExpiresAt
}

func (c *Client) refreshToken(ctx context.Context) error {
	if c.cred.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": c.cred.RefreshToken,
		"client_id":     oauthClientID,
		"scope":         oauthScopes,
	})
	if err != nil {
		return fmt.Errorf("quota: marshaling refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("quota: building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("quota: token refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.cred.AccessToken = ""
		return &TokenRefreshError{Status: resp.StatusCode}
	}

	var refreshed tokenRefreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return fmt.Errorf("quota: decoding refresh response: %w", err)
	}
	if refreshed.AccessToken == "" {
		return fmt.Errorf("quota: refresh response carried no access token")
	}

	c.cred.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		c.cred.RefreshToken = refreshed.RefreshToken
	}
	if refreshed.ExpiresIn > 0 {
		c.cred.ExpiresAt = float64(c.now().UnixMilli()) + float64(refreshed.ExpiresIn)*1000
	}

	c.persistCredentials()
	return nil
}

// persistCredentials writes the updated document back to every store.
// Failures are tolerated: the in-memory credential is already current.
func (c *Client) persistCredentials() {
	if c.doc == nil {
		return
	}
	if err := applyCredential(c.doc, *c.cred); err != nil {
		c.log.Warn().Err(err).Msg("cannot rebuild credential document")
		return
	}
	for _, store := range c.stores {
		if err := store.Save(c.doc); err != nil {
			c.log.Debug().Err(err).Msg("credential store save failed")
		}
	}
}

func (c *Client) callUsageAPI(ctx context.Context) (*usageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.usageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("quota: building usage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.cred.AccessToken))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-beta", anthropicBeta)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quota: usage API request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Force a credential reload on the next call.
		c.cred = nil
		c.doc = nil
		return nil, ErrAuthRequired
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{Status: resp.StatusCode}
	}

	var usage usageResponse
	if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
		return nil, fmt.Errorf("quota: decoding usage response: %w", err)
	}
	return &usage, nil
}

func (c *Client) parseResponse(resp *usageResponse) Quotas {
	subscription := ""
	if c.cred != nil {
		subscription = c.cred.SubscriptionType
	}
	return Quotas{
		FiveHour:         parseBucket(resp.FiveHour),
		SevenDay:         parseBucket(resp.SevenDay),
		SevenDayOpus:     parseBucket(resp.SevenDayOpus),
		SevenDaySonnet:   parseBucket(resp.SevenDaySonnet),
		SubscriptionType: subscription,
		FetchedAt:        c.now(),
	}
}

func parseBucket(b *quotaBucket) *ParsedQuota {
	if b == nil || b.Utilization == nil {
		return nil
	}
	return &ParsedQuota{
		Utilization: *b.Utilization,
		ResetsAt:    parseResetTime(b.ResetsAt),
	}
}

func parseResetTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &ts
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts
	}
	return nil
}
