package vue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/golang-jwt/jwt/v5"
)

// Emporia's public Cognito user pool.
const (
	cognitoRegion   = "us-east-2"
	cognitoClientID = "4qte47jbstod8apnfic0bunmrq"

	// Refresh this long before the ID token actually expires.
	tokenExpiryMargin = 5 * time.Minute
)

type cognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// Authenticator logs in to the Emporia Cognito user pool and hands out a
// cached ID token, refreshing it before expiry. Safe for concurrent use.
type Authenticator struct {
	mu       sync.Mutex
	idp      cognitoAPI
	logger   *slog.Logger
	username string
	password string

	idToken      string
	refreshToken string
	expiresAt    time.Time
	now          func() time.Time
}

// NewAuthenticator creates an authenticator for the given account
// credentials.
func NewAuthenticator(username, password string, logger *slog.Logger) *Authenticator {
	idp := cognitoidentityprovider.New(cognitoidentityprovider.Options{
		Region:      cognitoRegion,
		Credentials: aws.AnonymousCredentials{},
	})
	return &Authenticator{
		idp:      idp,
		logger:   logger,
		username: username,
		password: password,
		now:      time.Now,
	}
}

// Token returns a currently valid ID token. It logs in on first use, serves
// the cached token while it is fresh, and refreshes it near expiry. A failed
// refresh falls back to a full password login.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.idToken != "" && a.now().Add(tokenExpiryMargin).Before(a.expiresAt) {
		return a.idToken, nil
	}

	if a.refreshToken != "" {
		err := a.refresh(ctx)
		if err == nil {
			return a.idToken, nil
		}
		a.logger.Warn("Token refresh failed, falling back to login", "error", err)
	}

	if err := a.login(ctx); err != nil {
		return "", err
	}
	return a.idToken, nil
}

// Invalidate drops the cached ID token. The next Token call refreshes or
// logs in again.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.idToken = ""
	a.expiresAt = time.Time{}
}

func (a *Authenticator) login(ctx context.Context) error {
	a.logger.Info("Logging in to Emporia")
	out, err := a.idp.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: cognitotypes.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(cognitoClientID),
		AuthParameters: map[string]string{
			"USERNAME": a.username,
			"PASSWORD": a.password,
		},
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.IdToken == nil {
		return fmt.Errorf("login response missing authentication result")
	}

	a.setTokens(out.AuthenticationResult)
	a.logger.Info("Successfully logged in", "token_expires", a.expiresAt)
	return nil
}

func (a *Authenticator) refresh(ctx context.Context) error {
	out, err := a.idp.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: cognitotypes.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(cognitoClientID),
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": a.refreshToken,
		},
	})
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.IdToken == nil {
		return fmt.Errorf("refresh response missing authentication result")
	}

	a.setTokens(out.AuthenticationResult)
	a.logger.Debug("Refreshed ID token", "token_expires", a.expiresAt)
	return nil
}

func (a *Authenticator) setTokens(result *cognitotypes.AuthenticationResultType) {
	a.idToken = aws.ToString(result.IdToken)
	// Refresh responses omit the refresh token; keep the one from login.
	if result.RefreshToken != nil {
		a.refreshToken = aws.ToString(result.RefreshToken)
	}

	expiry, err := tokenExpiry(a.idToken)
	if err != nil {
		// Fall back to the advertised lifetime.
		expiry = a.now().Add(time.Duration(result.ExpiresIn) * time.Second)
	}
	a.expiresAt = expiry
}

// tokenExpiry reads the exp claim off the ID token without verifying the
// signature (the token came straight from Cognito over TLS).
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}
