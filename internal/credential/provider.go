// Package credential turns a service account key (or application default
// credentials) into OAuth2 access tokens and Firebase app options.
package credential

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"fbadmin/internal/admin"
)

// OAuth2 scopes used by the command groups
const (
	ScopeRemoteConfig  = "https://www.googleapis.com/auth/firebase.remoteconfig"
	ScopeMessaging     = "https://www.googleapis.com/auth/firebase.messaging"
	ScopeDatabase      = "https://www.googleapis.com/auth/firebase.database"
	ScopeUserinfoEmail = "https://www.googleapis.com/auth/userinfo.email"
)

// refreshMargin is how long before expiry a cached token stops being served
const refreshMargin = time.Minute

type tokenFetcher func(ctx context.Context, scopes []string) (*oauth2.Token, error)

// Provider implements token issuing for a single service credential
type Provider struct {
	keyJSON   []byte
	source    string
	projectID string
	dbURL     string

	cache       admin.Cache
	lockManager admin.LockManager
	logger      admin.Logger
	metrics     admin.Metrics

	fetch tokenFetcher
	now   func() time.Time
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
}

// NewProvider loads the credential described by config. CredentialsBase64 wins
// over CredentialsPath; UseDefaultCredentials or neither selects application
// default credentials.
// Every failure is a *admin.CredentialError.
func NewProvider(ctx context.Context, config admin.FirebaseConfig, cache admin.Cache, lockManager admin.LockManager, logger admin.Logger, metrics admin.Metrics) (*Provider, error) {
	p := &Provider{
		projectID:   config.ProjectID,
		dbURL:       config.DatabaseURL,
		cache:       cache,
		lockManager: lockManager,
		logger:      logger.With("service", admin.ServiceTypeCredential.String()),
		metrics:     metrics,
		now:         time.Now,
	}
	p.fetch = p.fetchToken

	useDefault := config.UseDefaultCredentials ||
		(config.CredentialsBase64 == "" && config.CredentialsPath == "")

	switch {
	case useDefault:
		p.source = "application default credentials"
		creds, err := google.FindDefaultCredentials(ctx)
		if err != nil {
			return nil, &admin.CredentialError{Source: p.source, Err: err}
		}
		p.keyJSON = creds.JSON
		if p.projectID == "" {
			p.projectID = creds.ProjectID
		}
	case config.CredentialsBase64 != "":
		p.source = "credentials_base64"
		keyJSON, err := base64.StdEncoding.DecodeString(config.CredentialsBase64)
		if err != nil {
			return nil, &admin.CredentialError{Source: p.source, Err: fmt.Errorf("failed to decode credentials: %w", err)}
		}
		p.keyJSON = keyJSON
	default:
		p.source = config.CredentialsPath
		keyJSON, err := os.ReadFile(config.CredentialsPath)
		if err != nil {
			return nil, &admin.CredentialError{Source: p.source, Err: err}
		}
		p.keyJSON = keyJSON
	}

	if p.keyJSON != nil {
		if err := p.parseKey(ctx); err != nil {
			return nil, &admin.CredentialError{Source: p.source, Err: err}
		}
	}

	p.logger.Debug("credential loaded", "source", p.source, "project_id", p.projectID)
	return p, nil
}

// parseKey checks that the key is usable and fills in the project ID
func (p *Provider) parseKey(ctx context.Context) error {
	var key serviceAccountKey
	if err := json.Unmarshal(p.keyJSON, &key); err != nil {
		return fmt.Errorf("failed to parse credentials JSON: %w", err)
	}
	if key.Type == "" {
		return errors.New("credentials JSON has no type")
	}
	if _, err := google.CredentialsFromJSON(ctx, p.keyJSON); err != nil {
		return err
	}
	if p.projectID == "" {
		p.projectID = key.ProjectID
	}
	return nil
}

// ProjectID returns the configured project, or the one named in the key
func (p *Provider) ProjectID() (string, error) {
	if p.projectID == "" {
		return "", admin.ErrMissingProjectID
	}
	return p.projectID, nil
}

// DatabaseURL returns the realtime database URL
func (p *Provider) DatabaseURL() (string, error) {
	if p.dbURL == "" {
		return "", admin.ErrMissingDatabaseURL
	}
	return strings.TrimSuffix(p.dbURL, "/"), nil
}

// ClientOptions returns the options that make Google client libraries use
// this credential. Empty means application default credentials.
func (p *Provider) ClientOptions() []option.ClientOption {
	if p.keyJSON == nil {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON(p.keyJSON)}
}

// NewApp initializes a Firebase app bound to this credential. opts are added
// after the credential, e.g. an endpoint override.
func (p *Provider) NewApp(ctx context.Context, opts ...option.ClientOption) (*firebase.App, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   p.projectID,
		DatabaseURL: p.dbURL,
	}, append(p.ClientOptions(), opts...)...)
	if err != nil {
		return nil, &admin.CredentialError{Source: p.source, Err: fmt.Errorf("failed to initialize Firebase app: %w", err)}
	}
	return app, nil
}

type cachedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

// Token returns an access token for scopes. Tokens are cached until shortly
// before they expire; concurrent callers for the same scope set share a fetch.
func (p *Provider) Token(ctx context.Context, scopes ...string) (*oauth2.Token, error) {
	key := p.cacheKey(scopes)

	p.lockManager.Lock(key)
	defer p.lockManager.Unlock(key)

	if token := p.getCachedToken(ctx, key); token != nil {
		p.metrics.IncTokenCache("hit")
		return token, nil
	}
	p.metrics.IncTokenCache("miss")

	start := p.now()
	token, err := p.fetch(ctx, scopes)
	if err != nil {
		p.metrics.ObserveRemoteCall(admin.ServiceTypeCredential, "token", admin.OutcomeFailure, p.now().Sub(start))
		return nil, &admin.CredentialError{Source: p.source, Err: fmt.Errorf("token exchange failed: %w", err)}
	}
	p.metrics.ObserveRemoteCall(admin.ServiceTypeCredential, "token", admin.OutcomeSuccess, p.now().Sub(start))

	p.setCachedToken(ctx, key, token)
	return token, nil
}

// TokenSource adapts Token to oauth2.TokenSource for HTTP clients
func (p *Provider) TokenSource(scopes ...string) oauth2.TokenSource {
	return &tokenSource{provider: p, scopes: scopes}
}

type tokenSource struct {
	provider *Provider
	scopes   []string
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	return ts.provider.Token(context.Background(), ts.scopes...)
}

func (p *Provider) fetchToken(ctx context.Context, scopes []string) (*oauth2.Token, error) {
	var (
		creds *google.Credentials
		err   error
	)
	if p.keyJSON != nil {
		creds, err = google.CredentialsFromJSON(ctx, p.keyJSON, scopes...)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, scopes...)
	}
	if err != nil {
		return nil, err
	}
	return creds.TokenSource.Token()
}

// cacheKey creates a cache key using format "token:<scope set hash>"
func (p *Provider) cacheKey(scopes []string) string {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)

	hasher := sha256.New()
	hasher.Write([]byte(p.source))
	hasher.Write([]byte{0})
	hasher.Write([]byte(strings.Join(sorted, " ")))
	return "token:" + hex.EncodeToString(hasher.Sum(nil))[:32]
}

func (p *Provider) getCachedToken(ctx context.Context, key string) *oauth2.Token {
	data, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, admin.ErrCacheKeyNotFound) {
			p.logger.Warn("token cache read failed", "error", err)
		}
		return nil
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		p.logger.Warn("discarding unreadable cached token", "error", err)
		_ = p.cache.Delete(ctx, key)
		return nil
	}
	if !cached.Expiry.IsZero() && !p.now().Add(refreshMargin).Before(cached.Expiry) {
		return nil
	}

	return &oauth2.Token{
		AccessToken: cached.AccessToken,
		TokenType:   cached.TokenType,
		Expiry:      cached.Expiry,
	}
}

func (p *Provider) setCachedToken(ctx context.Context, key string, token *oauth2.Token) {
	var ttl time.Duration
	if !token.Expiry.IsZero() {
		ttl = token.Expiry.Sub(p.now()) - refreshMargin
		if ttl <= 0 {
			return
		}
	}

	data, err := json.Marshal(cachedToken{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Expiry:      token.Expiry,
	})
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, data, ttl); err != nil {
		p.logger.Warn("token cache write failed", "error", err)
	}
}
