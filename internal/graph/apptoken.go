package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultAuthorityURL is the Azure AD v2.0 token authority.
const defaultAuthorityURL = "https://login.microsoftonline.com"

// graphDefaultScope requests all application permissions granted to the app
// registration (client-credentials flow has no incremental consent).
const graphDefaultScope = "https://graph.microsoft.com/.default"

// tokenExpiryMargin is how long before the provider-reported expiry a cached
// token is considered stale. Azure AD app tokens live ~1 hour; refreshing a
// minute early avoids a token expiring mid-request.
const tokenExpiryMargin = time.Minute

// Credential identifies an Azure AD app registration for app-only access.
// Supplied by configuration, never mutated.
type Credential struct {
	ClientID     string
	ClientSecret string
	TenantID     string

	// AuthorityURL overrides the token authority. Empty means the public
	// Azure AD endpoint. Tests point this at an httptest server.
	AuthorityURL string
}

// AuthError indicates token acquisition failed, carrying the provider's
// diagnostic string when one was returned.
type AuthError struct {
	Detail string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("graph: token acquisition failed: %s", e.Detail)
	}

	return fmt.Sprintf("graph: token acquisition failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// fetchFunc acquires a fresh token and its expiry. CachedTokenSource calls it
// on cache miss; tests substitute a counting fake.
type fetchFunc func() (string, time.Time, error)

// CachedTokenSource caches a bearer token and re-acquires it synchronously
// when the cached value is within the expiry margin. A token returned by
// Token() is never expired at time of return.
//
// The mutex keeps the cached fields consistent; it does not single-flight
// concurrent misses — two goroutines missing at once may both hit the
// provider, which is harmless (both tokens are valid).
type CachedTokenSource struct {
	mu     sync.Mutex
	fetch  fetchFunc
	now    func() time.Time
	margin time.Duration
	logger *slog.Logger

	token  string
	expiry time.Time
}

// NewCachedTokenSource builds a cache around fetch with an injected clock.
// now may be nil (defaults to time.Now); margin <= 0 defaults to
// tokenExpiryMargin.
func NewCachedTokenSource(fetch fetchFunc, now func() time.Time, margin time.Duration, logger *slog.Logger) *CachedTokenSource {
	if now == nil {
		now = time.Now
	}

	if margin <= 0 {
		margin = tokenExpiryMargin
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &CachedTokenSource{
		fetch:  fetch,
		now:    now,
		margin: margin,
		logger: logger,
	}
}

// Token returns the cached token, acquiring a fresh one first when the cache
// is empty or the cached token is within the expiry margin.
func (s *CachedTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiry.Add(-s.margin)) {
		s.logger.Debug("token cache hit", slog.Time("expiry", s.expiry))
		return s.token, nil
	}

	tok, expiry, err := s.fetch()
	if err != nil {
		return "", err
	}

	s.token = tok
	s.expiry = expiry

	s.logger.Info("acquired app token", slog.Time("expiry", expiry))

	return tok, nil
}

// NewAppTokenSource returns a cached TokenSource backed by the OAuth2
// client-credentials grant against the credential's tenant authority.
//
// ctx is bound to the underlying token requests and must outlive the source;
// callers pass context.Background() for long-lived use. httpClient may be nil.
func NewAppTokenSource(ctx context.Context, cred Credential, httpClient *http.Client, logger *slog.Logger) *CachedTokenSource {
	if logger == nil {
		logger = slog.Default()
	}

	authority := cred.AuthorityURL
	if authority == "" {
		authority = defaultAuthorityURL
	}

	cfg := &clientcredentials.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, cred.TenantID),
		Scopes:       []string{graphDefaultScope},
	}

	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}

	fetch := func() (string, time.Time, error) {
		tok, err := cfg.Token(ctx)
		if err != nil {
			return "", time.Time{}, &AuthError{Detail: retrieveDetail(err), Err: err}
		}

		if tok.AccessToken == "" {
			return "", time.Time{}, &AuthError{Detail: "provider returned empty access token"}
		}

		return tok.AccessToken, tok.Expiry, nil
	}

	return NewCachedTokenSource(fetch, nil, tokenExpiryMargin, logger)
}

// retrieveDetail pulls the provider's error payload out of an oauth2
// retrieval failure, if present.
func retrieveDetail(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			return re.ErrorDescription
		}

		return string(re.Body)
	}

	return ""
}
