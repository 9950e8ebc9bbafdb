package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// notFoundMarker is the body fragment the backend sends with a 404 when a
// user has never registered, as opposed to a 404 from a broken route.
const notFoundMarker = "User not found"

var ErrMalformedResponse = errors.New("malformed backend response")

// RequestError wraps a network failure or unexpected status on a backend
// call. These are never retried here; the caller decides.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string { return "backend: " + e.Op + ": " + e.Err.Error() }
func (e *RequestError) Unwrap() error { return e.Err }

// AuthStatus distinguishes a definitive "not registered" answer from
// failures that say nothing about registration.
type AuthStatus int

const (
	AuthUnknown AuthStatus = iota
	AuthOK
	AuthNotRegistered
)

// JoinRequest is the outcome of a successful join-match call: whose lobby
// to look for and the password to join it with. Consumed exactly once.
type JoinRequest struct {
	TargetName string
	TargetTag  string
	Credential string
}

// Client is a stateless wrapper for the remote backend. Every call is a
// single request with a fixed timeout.
type Client struct {
	rc  *resty.Client
	log *zap.Logger
}

func New(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout)
	return &Client{rc: rc, log: log.Named("backend")}
}

// Authenticate checks whether the stored identity token is registered.
// AuthNotRegistered is definitive; AuthUnknown means the check itself
// failed and says nothing about the account.
func (c *Client) Authenticate(ctx context.Context, discordID string) (AuthStatus, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParam("discord_id", discordID).
		Get("/auth")
	if err != nil {
		return AuthUnknown, &RequestError{Op: "auth", Err: err}
	}
	c.log.Debug("auth response", zap.Int("status", resp.StatusCode()))

	switch {
	case resp.StatusCode() == 200:
		return AuthOK, nil
	case resp.StatusCode() == 404 && strings.Contains(resp.String(), notFoundMarker):
		return AuthNotRegistered, nil
	default:
		return AuthUnknown, &RequestError{Op: "auth", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
}

// RedeemCode exchanges a one-time registration code for a credential token.
func (c *Client) RedeemCode(ctx context.Context, code, summonerDisplay string) (string, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParam("otp_pass", code).
		SetQueryParam("summonersname", summonerDisplay).
		Get("/otp")
	if err != nil {
		return "", &RequestError{Op: "otp", Err: err}
	}
	if resp.StatusCode() != 200 {
		return "", &RequestError{Op: "otp", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	token := strings.TrimSpace(resp.String())
	if token == "" {
		return "", fmt.Errorf("%w: empty credential token", ErrMalformedResponse)
	}
	return token, nil
}

// LatestVersion reports the newest available client version.
func (c *Client) LatestVersion(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/client_version")
	if err != nil {
		return "", &RequestError{Op: "client_version", Err: err}
	}
	if resp.StatusCode() != 200 {
		return "", &RequestError{Op: "client_version", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if out.Version == "" {
		return "", fmt.Errorf("%w: missing version field", ErrMalformedResponse)
	}
	return out.Version, nil
}

// JoinMatch redeems a match password for the lobby owner's identity and the
// lobby join credential.
func (c *Client) JoinMatch(ctx context.Context, password string) (JoinRequest, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParam("password", password).
		Get("/joinmatch")
	if err != nil {
		return JoinRequest{}, &RequestError{Op: "joinmatch", Err: err}
	}
	if resp.StatusCode() != 200 {
		return JoinRequest{}, &RequestError{Op: "joinmatch", Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	return ParseJoinResponse(resp.String())
}

// ParseJoinResponse splits "name#tag,credential": first comma separates
// identity from credential, first '#' separates name from tag.
func ParseJoinResponse(body string) (JoinRequest, error) {
	body = strings.TrimSpace(body)
	identity, credential, ok := strings.Cut(body, ",")
	if !ok {
		return JoinRequest{}, fmt.Errorf("%w: no comma in %q", ErrMalformedResponse, body)
	}
	name, tag, ok := strings.Cut(identity, "#")
	if !ok {
		return JoinRequest{}, fmt.Errorf("%w: no tag separator in %q", ErrMalformedResponse, identity)
	}
	if name == "" || credential == "" {
		return JoinRequest{}, fmt.Errorf("%w: empty field in %q", ErrMalformedResponse, body)
	}
	return JoinRequest{TargetName: name, TargetTag: tag, Credential: credential}, nil
}
