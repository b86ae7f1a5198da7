package githubapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthProvider resolves the bearer token used to construct a Client. The
// engine only ever sees a resolved token string; it does not care
// whether it came from a static PAT or a GitHub App installation.
type AuthProvider interface {
	Token() (string, error)
}

// StaticToken is an AuthProvider that always returns the same token.
// cmd/server does not use it: with GITHUB_TOKEN configured it passes
// the token string to NewClient directly.
type StaticToken string

func (s StaticToken) Token() (string, error) { return string(s), nil }

// AppAuth mints short-lived installation tokens from a GitHub App ID and
// RSA private key: generate a JWT, then exchange it for an installation
// token for DownstreamFork's owner.
type AppAuth struct {
	AppID      string
	PrivateKey string
	// Owner is the org/user that owns the installation to authenticate
	// as (the downstream fork's org, since that's where the bot pushes
	// and opens PRs from).
	Owner string

	httpClient *http.Client
	cached     *installationToken
}

type installationToken struct {
	token     string
	expiresAt time.Time
}

func NewAppAuth(appID, privateKey, owner string) *AppAuth {
	return &AppAuth{AppID: appID, PrivateKey: privateKey, Owner: owner, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

// Token returns a cached installation token, minting a new one if absent
// or within two minutes of expiry.
func (a *AppAuth) Token() (string, error) {
	if a.cached != nil && time.Until(a.cached.expiresAt) > 2*time.Minute {
		return a.cached.token, nil
	}

	jwtToken, err := a.generateJWT()
	if err != nil {
		return "", err
	}
	installationID, err := a.installationID(jwtToken)
	if err != nil {
		return "", err
	}
	tok, err := a.installationAccessToken(jwtToken, installationID)
	if err != nil {
		return "", err
	}
	a.cached = tok
	return tok.token, nil
}

func (a *AppAuth) generateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse GitHub App private key: %w", err)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    a.AppID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign GitHub App JWT: %w", err)
	}
	return signed, nil
}

func (a *AppAuth) installationID(jwtToken string) (int64, error) {
	req, err := http.NewRequest(http.MethodGet, "https://api.github.com/orgs/"+a.Owner+"/installation", nil)
	if err != nil {
		return 0, err
	}
	a.setAppHeaders(req, jwtToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get installation for %s: %w", a.Owner, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("get installation for %s: %d %s", a.Owner, resp.StatusCode, string(body))
	}

	var result struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode installation response: %w", err)
	}
	return result.ID, nil
}

func (a *AppAuth) installationAccessToken(jwtToken string, installationID int64) (*installationToken, error) {
	url := "https://api.github.com/app/installations/" + strconv.FormatInt(installationID, 10) + "/access_tokens"
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	a.setAppHeaders(req, jwtToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mint installation token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mint installation token: %d %s", resp.StatusCode, string(body))
	}

	var result struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode access token response: %w", err)
	}
	return &installationToken{token: result.Token, expiresAt: result.ExpiresAt}, nil
}

func (a *AppAuth) setAppHeaders(req *http.Request, jwtToken string) {
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}
