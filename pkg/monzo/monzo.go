package monzo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/monzosync/pkg/models"
)

// Tokens is the persisted OAuth session state. Expiry is a unix timestamp.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       int64  `json:"expiry"`
}

// Options configures the Monzo client. APIURL and AuthURL default to the
// public Monzo endpoints.
type Options struct {
	APIURL       string
	AuthURL      string
	ClientID     string
	ClientSecret string
	TokensPath   string
}

// Client fetches raw transactions from the Monzo API, refreshing the OAuth
// access token from the persisted refresh token when it has expired. Token
// state is shared across the concurrent per-account fetches, hence the
// mutex.
type Client struct {
	opts   Options
	tokens Tokens
	httpc  *http.Client
	logger *log.Logger
	mu     sync.Mutex
}

func NewClient(opts Options, logger *log.Logger) (*Client, error) {
	if opts.APIURL == "" {
		opts.APIURL = "https://api.monzo.com"
	}
	if opts.AuthURL == "" {
		opts.AuthURL = opts.APIURL
	}

	data, err := os.ReadFile(opts.TokensPath)
	if err != nil {
		return nil, fmt.Errorf("reading monzo tokens: %w", err)
	}
	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parsing monzo tokens: %w", err)
	}

	logger.Info("authenticating with monzo api")
	return &Client{
		opts:   opts,
		tokens: tokens,
		httpc:  &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}, nil
}

type transactionsResponse struct {
	Transactions []models.RawTransaction `json:"transactions"`
}

// Transactions fetches one account's transactions created since the given
// time, with merchant expansion.
func (c *Client) Transactions(accountID string, since time.Time) ([]models.RawTransaction, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("account_id", accountID)
	q.Set("since", since.UTC().Format(time.RFC3339))
	q.Add("expand[]", "merchant")

	req, err := http.NewRequest(http.MethodGet, c.opts.APIURL+"/transactions?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions for %s: %w", accountID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching transactions for %s: unexpected status %d", accountID, resp.StatusCode)
	}

	var out transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding transactions for %s: %w", accountID, err)
	}
	return out.Transactions, nil
}

func (c *Client) accessToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().Unix() < c.tokens.Expiry {
		return c.tokens.AccessToken, nil
	}
	if err := c.refresh(); err != nil {
		return "", err
	}
	return c.tokens.AccessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// refresh exchanges the refresh token for a new access token and rewrites
// the tokens file so the next run picks up the rotated refresh token.
// Callers must hold the mutex.
func (c *Client) refresh() error {
	c.logger.Debug("refreshing monzo access token")

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.opts.ClientID)
	form.Set("client_secret", c.opts.ClientSecret)
	form.Set("refresh_token", c.tokens.RefreshToken)

	resp, err := c.httpc.Post(c.opts.AuthURL+"/oauth2/token", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("refreshing token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refreshing token: unexpected status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("decoding token response: %w", err)
	}

	c.tokens = Tokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		Expiry:       time.Now().Unix() + tr.ExpiresIn,
	}

	data, err := json.Marshal(c.tokens)
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}
	if err := os.WriteFile(c.opts.TokensPath, data, 0o600); err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}
	return nil
}
