package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the Twitch OAuth2 endpoint issuing app access tokens.
const DefaultTokenURL = "https://id.twitch.tv/oauth2/token"

// defaultExpiryBuffer keeps a margin between the expiry Twitch reports and the
// point at which a cached token is considered stale.
const defaultExpiryBuffer = 30 * time.Second

// ErrMissingCredentials is returned when no client id or secret is configured.
var ErrMissingCredentials = errors.New("missing Twitch credentials: set TWITCH_CLIENT_ID and TWITCH_CLIENT_SECRET")

// Authenticator handles Twitch app access token retrieval and caching.
type Authenticator struct {
	client       *http.Client
	clientID     string
	expiryBuffer time.Duration
	config       clientcredentials.Config

	mu    sync.Mutex
	token *oauth2.Token
}

// AuthOptions tunes an Authenticator. Zero values select the defaults.
type AuthOptions struct {
	TokenURL     string
	ExpiryBuffer time.Duration
}

// NewAuthenticator builds an Authenticator for the client-credentials grant.
func NewAuthenticator(client *http.Client, clientID, clientSecret string, opts AuthOptions) *Authenticator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	tokenURL := strings.TrimSpace(opts.TokenURL)
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	buffer := opts.ExpiryBuffer
	if buffer <= 0 {
		buffer = defaultExpiryBuffer
	}
	id := strings.TrimSpace(clientID)
	return &Authenticator{
		client:       client,
		clientID:     id,
		expiryBuffer: buffer,
		config: clientcredentials.Config{
			ClientID:     id,
			ClientSecret: strings.TrimSpace(clientSecret),
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}
}

// ClientID reports the configured application client id.
func (a *Authenticator) ClientID() string {
	return a.clientID
}

// Token returns a cached app access token or fetches a new one when expired.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.config.ClientID == "" || a.config.ClientSecret == "" {
		return "", ErrMissingCredentials
	}

	if a.token != nil && a.token.AccessToken != "" && a.fresh(a.token) {
		return a.token.AccessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := a.config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	a.token = tok
	return tok.AccessToken, nil
}

func (a *Authenticator) fresh(tok *oauth2.Token) bool {
	if tok.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(a.expiryBuffer).Before(tok.Expiry)
}

// Invalidate drops the cached token so the next call fetches a new one.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
}

// Apply adds Client-Id and Authorization headers to an HTTP request, fetching a token if needed.
func (a *Authenticator) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", a.clientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return nil
}
