// Package githubapi implements the GitHub REST operations this service
// needs as typed methods on a thin wrapper around *github.Client: a
// go-github client with a swappable BaseURL, pointed either at the real
// API or at an httptest server in tests.
package githubapi

import (
	"net/http"
	"net/url"

	gh "github.com/google/go-github/v66/github"
)

const userAgent = "Servo web-platform-test sync service"

// Client wraps the go-github REST client with the bearer token and base
// URL resolved from configuration.
type Client struct {
	gh *gh.Client
}

// NewClient builds a Client authenticated with token, pointed at
// apiBaseURL (trailing slash required by go-github's BaseURL contract).
func NewClient(apiBaseURL, token string) (*Client, error) {
	base, err := url.Parse(apiBaseURL)
	if err != nil {
		return nil, err
	}
	client := gh.NewClient(nil).WithAuthToken(token)
	client.BaseURL = base
	client.UserAgent = userAgent
	return &Client{gh: client}, nil
}

// NewClientWithHTTP builds a Client using a caller-supplied *http.Client,
// for pointing at a mock server without going through WithAuthToken's
// default transport.
func NewClientWithHTTP(httpClient *http.Client, apiBaseURL, token string) (*Client, error) {
	base, err := url.Parse(apiBaseURL)
	if err != nil {
		return nil, err
	}
	client := gh.NewClient(httpClient).WithAuthToken(token)
	client.BaseURL = base
	client.UserAgent = userAgent
	return &Client{gh: client}, nil
}
