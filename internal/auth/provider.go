// ./fieldcam-backend/internal/auth/provider.go
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fieldcam/backend/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// DeviceCode is what the user has to enter on the verification page.
type DeviceCode struct {
	UserCode        string    `json:"userCode"`
	VerificationURL string    `json:"verificationUrl"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// GoogleProvider obtains tokens with the OAuth device authorization grant,
// which suits a service the phone talks to without a redirect page.
type GoogleProvider struct {
	config      *oauth2.Config
	timeout     time.Duration
	userInfoOpt []option.ClientOption
	log         *zap.Logger

	mu      sync.Mutex
	pending *DeviceCode
}

type ProviderOption func(*GoogleProvider)

// WithEndpoint points the token flow at a different authorization server.
func WithEndpoint(e oauth2.Endpoint) ProviderOption {
	return func(p *GoogleProvider) { p.config.Endpoint = e }
}

// WithUserInfoOptions adds client options for the user-info lookup.
func WithUserInfoOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *GoogleProvider) { p.userInfoOpt = append(p.userInfoOpt, opts...) }
}

// NewGoogleProvider builds a provider. timeout bounds the whole device-code
// poll; after it the sign-in gives up.
func NewGoogleProvider(clientID, clientSecret string, scopes []string, timeout time.Duration, logger *zap.Logger, opts ...ProviderOption) *GoogleProvider {
	p := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		},
		timeout: timeout,
		log:     logger.Named("google-auth"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GoogleProvider) RequestToken(ctx context.Context) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	da, err := p.config.DeviceAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("device authorization request failed: %w", err)
	}

	code := &DeviceCode{UserCode: da.UserCode, VerificationURL: da.VerificationURI, ExpiresAt: da.Expiry}
	if da.VerificationURIComplete != "" {
		code.VerificationURL = da.VerificationURIComplete
	}
	p.setPending(code)
	defer p.setPending(nil)

	p.log.Info("waiting for user to approve sign-in",
		zap.String("user_code", code.UserCode),
		zap.String("verification_url", code.VerificationURL),
	)

	tok, err := p.config.DeviceAccessToken(ctx, da)
	if err != nil {
		return "", fmt.Errorf("device token polling failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("provider returned an empty access token")
	}
	return tok.AccessToken, nil
}

func (p *GoogleProvider) UserInfo(ctx context.Context, accessToken string) (*models.Identity, error) {
	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}, p.userInfoOpt...)

	srv, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create user info client: %w", err)
	}
	info, err := srv.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("user info lookup failed: %w", err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("user info has no email")
	}
	return &models.Identity{Email: info.Email}, nil
}

// Pending returns the device code of a sign-in waiting for approval, or nil.
func (p *GoogleProvider) Pending() *DeviceCode {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return nil
	}
	cp := *p.pending
	return &cp
}

func (p *GoogleProvider) setPending(code *DeviceCode) {
	p.mu.Lock()
	p.pending = code
	p.mu.Unlock()
}
