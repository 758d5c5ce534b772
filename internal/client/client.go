// Package client is a typed HTTP client for the GigShield API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"gigshield.org/internal/auth"
	"gigshield.org/internal/domain"
	"gigshield.org/internal/ledger"
)

// APIError is the decoded error body of a non-2xx response.
type APIError struct {
	Status    int    `json:"-"`
	Message   string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
}

// Kind returns the server's error classification.
func (e *APIError) Kind() domain.Kind { return domain.Kind(e.Code) }

// KindOf extracts the server error kind from err, or "" when err did not
// come from the API.
func KindOf(err error) domain.Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	return ""
}

type Client struct {
	rc    *resty.Client
	token string
}

type Option func(*resty.Client)

func WithTimeout(d time.Duration) Option { return func(rc *resty.Client) { rc.SetTimeout(d) } }

// WithHTTPClient swaps the transport, typically for httptest servers.
func WithHTTPClient(hc *http.Client) Option {
	return func(rc *resty.Client) { rc.SetTransport(hc.Transport) }
}

// New creates a client. Requests rejected by the rate limiter are retried.
func New(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() == http.StatusTooManyRequests
		})
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{rc: rc}
}

// WithToken returns a client that authenticates as the token's subject. The
// underlying connection pool is shared.
func (c *Client) WithToken(token string) *Client {
	return &Client{rc: c.rc, token: token}
}

func do[T any](ctx context.Context, c *Client, method, path string, query url.Values, body any) (T, error) {
	var (
		out    T
		apiErr APIError
	)
	req := c.rc.R().SetContext(ctx).SetResult(&out).SetError(&apiErr)
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return out, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return out, &apiErr
	}
	return out, nil
}

func poolPath(admin, poolID string) string {
	return "/v1/pools/" + url.PathEscape(admin) + "/" + url.PathEscape(poolID)
}

func claimPath(admin, poolID, claimID string) string {
	return poolPath(admin, poolID) + "/claims/" + url.PathEscape(claimID)
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Token requests a development token for user with the given roles. Admin
// roles are only granted when c itself holds an admin token.
func (c *Client) Token(ctx context.Context, user string, roles ...string) (TokenResponse, error) {
	return do[TokenResponse](ctx, c, http.MethodPost, "/v1/auth/token", nil,
		map[string]any{"user": user, "roles": roles})
}

// Login is Token followed by WithToken.
func (c *Client) Login(ctx context.Context, user string, roles ...string) (*Client, error) {
	tok, err := c.Token(ctx, user, roles...)
	if err != nil {
		return nil, err
	}
	return c.WithToken(tok.Token), nil
}

const operatorTTL = time.Hour

// Operator returns a client acting as an admin whose token is signed locally
// with the shared secret (GIGSHIELD_AUTH_SECRET). It works against any
// deployment that trusts that secret, including production.
func (c *Client) Operator(subject string) (*Client, error) {
	token, err := auth.GenerateToken(subject, []string{auth.RoleAdmin}, operatorTTL)
	if err != nil {
		return nil, fmt.Errorf("operator token: %w", err)
	}
	return c.WithToken(token), nil
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	return do[Health](ctx, c, http.MethodGet, "/healthz", nil, nil)
}

type PoolParams struct {
	ID             string `json:"pool_id"`
	Category       string `json:"category"`
	PremiumRateBps uint16 `json:"premium_rate_bps"`
	MaxPayout      uint64 `json:"max_payout"`
}

type Pool struct {
	domain.Pool
	VaultBalance uint64 `json:"vault_balance"`
}

type poolList struct {
	Items []domain.Pool `json:"items"`
}

// Pools lists pools; activeOnly drops deactivated ones.
func (c *Client) Pools(ctx context.Context, activeOnly bool) ([]domain.Pool, error) {
	out, err := do[poolList](ctx, c, http.MethodGet, "/v1/pools", activeQuery(activeOnly), nil)
	return out.Items, err
}

func activeQuery(activeOnly bool) url.Values {
	if !activeOnly {
		return nil
	}
	return url.Values{"active": {"true"}}
}

func (c *Client) CreatePool(ctx context.Context, p PoolParams) (Pool, error) {
	return do[Pool](ctx, c, http.MethodPost, "/v1/pools", nil, p)
}

func (c *Client) Pool(ctx context.Context, admin, poolID string) (Pool, error) {
	return do[Pool](ctx, c, http.MethodGet, poolPath(admin, poolID), nil, nil)
}

func (c *Client) SetPoolActive(ctx context.Context, admin, poolID string, active bool) (Pool, error) {
	return do[Pool](ctx, c, http.MethodPost, poolPath(admin, poolID)+"/activation", nil,
		map[string]bool{"active": active})
}

type Quote struct {
	Pool           string `json:"pool"`
	Earnings       uint64 `json:"earnings"`
	PremiumRateBps uint16 `json:"premium_rate_bps"`
	Premium        uint64 `json:"premium"`
	PremiumSOL     string `json:"premium_sol"`
}

func (c *Client) Quote(ctx context.Context, admin, poolID string, earnings uint64) (Quote, error) {
	q := url.Values{"earnings": []string{strconv.FormatUint(earnings, 10)}}
	return do[Quote](ctx, c, http.MethodGet, poolPath(admin, poolID)+"/quote", q, nil)
}

func (c *Client) DepositPremium(ctx context.Context, admin, poolID string, amount uint64) (domain.Policy, error) {
	return do[domain.Policy](ctx, c, http.MethodPost, poolPath(admin, poolID)+"/premiums", nil,
		map[string]uint64{"amount": amount})
}

func (c *Client) Policy(ctx context.Context, admin, poolID, worker string) (domain.Policy, error) {
	return do[domain.Policy](ctx, c, http.MethodGet, poolPath(admin, poolID)+"/policies/"+url.PathEscape(worker), nil, nil)
}

func (c *Client) SetPolicyActive(ctx context.Context, admin, poolID, worker string, active bool) (domain.Policy, error) {
	return do[domain.Policy](ctx, c, http.MethodPost, poolPath(admin, poolID)+"/policies/"+url.PathEscape(worker)+"/activation", nil,
		map[string]bool{"active": active})
}

type ClaimParams struct {
	ID           string      `json:"claim_id"`
	Amount       uint64      `json:"amount"`
	EvidenceHash domain.Hash `json:"evidence_hash"`
	Description  string      `json:"description"`
}

func (c *Client) SubmitClaim(ctx context.Context, admin, poolID string, p ClaimParams) (domain.Claim, error) {
	return do[domain.Claim](ctx, c, http.MethodPost, poolPath(admin, poolID)+"/claims", nil, p)
}

func (c *Client) Claim(ctx context.Context, admin, poolID, claimID string) (domain.Claim, error) {
	return do[domain.Claim](ctx, c, http.MethodGet, claimPath(admin, poolID, claimID), nil, nil)
}

type claimList struct {
	Items []domain.Claim `json:"items"`
}

func (c *Client) Claims(ctx context.Context, admin, poolID string) ([]domain.Claim, error) {
	out, err := do[claimList](ctx, c, http.MethodGet, poolPath(admin, poolID)+"/claims", nil, nil)
	return out.Items, err
}

type VoteResult struct {
	Claim    domain.Claim `json:"claim"`
	Vote     domain.Vote  `json:"vote"`
	Rewarded bool         `json:"rewarded"`
}

func (c *Client) Vote(ctx context.Context, admin, poolID, claimID string, approve bool) (VoteResult, error) {
	return do[VoteResult](ctx, c, http.MethodPost, claimPath(admin, poolID, claimID)+"/votes", nil,
		map[string]bool{"approve": approve})
}

func (c *Client) GetVote(ctx context.Context, admin, poolID, claimID, validator string) (domain.Vote, error) {
	return do[domain.Vote](ctx, c, http.MethodGet, claimPath(admin, poolID, claimID)+"/votes/"+url.PathEscape(validator), nil, nil)
}

func (c *Client) ResolveExpired(ctx context.Context, admin, poolID, claimID string) (domain.Claim, error) {
	return do[domain.Claim](ctx, c, http.MethodPost, claimPath(admin, poolID, claimID)+"/resolve", nil, nil)
}

func (c *Client) Withdraw(ctx context.Context, admin, poolID, claimID string) (domain.Claim, error) {
	return do[domain.Claim](ctx, c, http.MethodPost, claimPath(admin, poolID, claimID)+"/withdraw", nil, nil)
}

func (c *Client) RegisterValidator(ctx context.Context, stake uint64) (domain.Validator, error) {
	return do[domain.Validator](ctx, c, http.MethodPost, "/v1/validators", nil, map[string]uint64{"stake": stake})
}

func (c *Client) Unstake(ctx context.Context) (domain.Validator, error) {
	return do[domain.Validator](ctx, c, http.MethodPost, "/v1/validators/unstake", nil, nil)
}

type validatorList struct {
	Items []domain.Validator `json:"items"`
}

// Validators lists the registry; activeOnly drops unstaked validators.
func (c *Client) Validators(ctx context.Context, activeOnly bool) ([]domain.Validator, error) {
	out, err := do[validatorList](ctx, c, http.MethodGet, "/v1/validators", activeQuery(activeOnly), nil)
	return out.Items, err
}

func (c *Client) Validator(ctx context.Context, authority string) (domain.Validator, error) {
	return do[domain.Validator](ctx, c, http.MethodGet, "/v1/validators/"+url.PathEscape(authority), nil, nil)
}

type Balance struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	SOL     string `json:"sol"`
}

func (c *Client) Fund(ctx context.Context, identity string, amount uint64) (Balance, error) {
	return do[Balance](ctx, c, http.MethodPost, "/v1/accounts/"+url.PathEscape(identity)+"/fund", nil,
		map[string]uint64{"amount": amount})
}

func (c *Client) Balance(ctx context.Context, identity string) (Balance, error) {
	return do[Balance](ctx, c, http.MethodGet, "/v1/accounts/"+url.PathEscape(identity)+"/balance", nil, nil)
}

type JournalPage struct {
	Items     []ledger.Entry `json:"items"`
	NextAfter uint64         `json:"next_after"`
	AsOf      time.Time      `json:"as_of"`
}

func (c *Client) Journal(ctx context.Context, limit int, after uint64) (JournalPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if after > 0 {
		q.Set("after", strconv.FormatUint(after, 10))
	}
	return do[JournalPage](ctx, c, http.MethodGet, "/v1/journal", q, nil)
}
