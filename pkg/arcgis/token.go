package arcgis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// tokenSource produces and caches portal tokens for request authentication.
type tokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate discards the cached token after the service rejects it.
	Invalidate()
}

// staticToken wraps a caller-supplied token that is never refreshed.
type staticToken string

func (t staticToken) Token(context.Context) (string, error) { return string(t), nil }
func (t staticToken) Invalidate()                           {}

// noToken is used for public layers that require no authentication.
type noToken struct{}

func (noToken) Token(context.Context) (string, error) { return "", nil }
func (noToken) Invalidate()                           {}

// portalToken fetches tokens from the portal's generateToken endpoint with
// username/password credentials and caches them until shortly before expiry.
type portalToken struct {
	portalURL string
	username  string
	password  string
	http      *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// tokenExpirySlack refreshes tokens early so in-flight requests don't race
// the expiry on the server side.
const tokenExpirySlack = 2 * time.Minute

func (p *portalToken) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Until(p.expires) > tokenExpirySlack {
		return p.token, nil
	}

	form := url.Values{
		"username":   {p.username},
		"password":   {p.password},
		"client":     {"referer"},
		"referer":    {p.portalURL},
		"expiration": {"60"},
		"f":          {"json"},
	}

	endpoint := strings.TrimRight(p.portalURL, "/") + "/sharing/rest/generateToken"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", newError(KindConnection, 0, eris.Wrap(err, "arcgis: create token request"))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", newError(KindConnection, 0, eris.Wrap(err, "arcgis: generate token"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(KindConnection, 0, eris.Wrap(err, "arcgis: read token response"))
	}
	if resp.StatusCode != http.StatusOK {
		return "", newError(KindConnection, 0, eris.Errorf("arcgis: token endpoint status %d: %s", resp.StatusCode, string(body)))
	}

	var result struct {
		Token   string       `json:"token"`
		Expires int64        `json:"expires"` // epoch milliseconds
		Error   *serverError `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", newError(KindConnection, 0, eris.Wrap(err, "arcgis: unmarshal token response"))
	}
	if result.Error != nil {
		return "", newError(KindConnection, result.Error.Code, eris.Wrap(result.Error, "arcgis: generate token"))
	}
	if result.Token == "" {
		return "", newError(KindConnection, 0, eris.New("arcgis: token endpoint returned empty token"))
	}

	p.token = result.Token
	p.expires = time.UnixMilli(result.Expires)
	return p.token, nil
}

func (p *portalToken) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}
