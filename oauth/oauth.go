// Package oauth drives the implicit-flow round trip to the identity
// provider: building the authorization URL that carries the nonce, and
// recovering the id_token from the fragment of the redirect back.
package oauth

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/pkg/errors"
)

const (
	GoogleAuthURL = "https://accounts.google.com/o/oauth2/v2/auth"

	responseType = "id_token"
	scope        = "openid email profile"
	tokenParam   = "id_token"
)

// Config identifies this application to the identity provider.
type Config struct {
	AuthURL     string
	ClientID    string
	RedirectURI string
}

// AuthorizationURL builds the provider URL for an implicit id_token request bound to nonce.
func AuthorizationURL(cfg Config, nonce string) (string, error) {
	if cfg.ClientID == "" || cfg.RedirectURI == "" {
		return "", errors.New("oauth client id and redirect uri are required")
	}
	if nonce == "" {
		return "", errors.New("nonce is required")
	}
	base := cfg.AuthURL
	if base == "" {
		base = GoogleAuthURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parse auth url")
	}

	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", cfg.RedirectURI)
	q.Set("response_type", responseType)
	q.Set("scope", scope)
	q.Set("nonce", nonce)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Navigator performs a full page navigation. Nothing held in memory by the
// caller should be assumed to survive it.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// BeginRedirect sends the user agent to the provider.
func BeginRedirect(ctx context.Context, nav Navigator, cfg Config, nonce string) error {
	target, err := AuthorizationURL(cfg, nonce)
	if err != nil {
		return err
	}
	return nav.Navigate(ctx, target)
}

// WriterNavigator hands the URL to a human by printing it.
type WriterNavigator struct {
	W io.Writer
}

func (n WriterNavigator) Navigate(_ context.Context, target string) error {
	_, err := fmt.Fprintf(n.W, "Open this URL to sign in:\n\n  %s\n\n", target)
	return err
}

// Location is the user agent's current address bar.
type Location interface {
	Href() string
	Replace(href string)
}

// StaticLocation is a Location backed by a string, e.g. a pasted redirect URL.
type StaticLocation struct {
	mu   sync.Mutex
	href string
}

func NewStaticLocation(href string) *StaticLocation {
	return &StaticLocation{href: href}
}

func (l *StaticLocation) Href() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.href
}

func (l *StaticLocation) Replace(href string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.href = href
}

// ExtractToken reads id_token from the URL fragment and then strips the
// fragment from the location so the token does not linger in history.
// The query string is never consulted.
func ExtractToken(loc Location) (string, bool) {
	u, err := url.Parse(loc.Href())
	if err != nil || (u.Fragment == "" && u.RawFragment == "") {
		return "", false
	}

	params, _ := url.ParseQuery(u.EscapedFragment())
	token := params.Get(tokenParam)

	u.Fragment = ""
	u.RawFragment = ""
	loc.Replace(u.String())

	return token, token != ""
}
