package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client performs operations against a single hosted feature layer.
type Client interface {
	// Layer fetches the layer's metadata, including its field list.
	Layer(ctx context.Context) (*LayerInfo, error)
	// EnsureField adds the field to the layer definition if it is missing.
	EnsureField(ctx context.Context, field Field) error
	// Query returns one page of features matching q.
	Query(ctx context.Context, q Query) (*QueryResult, error)
	// Count returns the number of features matching the where clause.
	Count(ctx context.Context, where string) (int, error)
	// ApplyEdits updates attributes on existing features and returns the
	// per-record outcome.
	ApplyEdits(ctx context.Context, updates []Update) ([]EditResult, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithPortalCredentials authenticates via the portal's generateToken
// endpoint using a username and password.
func WithPortalCredentials(portalURL, username, password string) Option {
	return func(c *httpClient) {
		c.tokens = &portalToken{
			portalURL: portalURL,
			username:  username,
			password:  password,
			http:      c.http,
		}
	}
}

// WithToken authenticates with a pre-issued token.
func WithToken(token string) Option {
	return func(c *httpClient) {
		c.tokens = staticToken(token)
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
		if pt, ok := c.tokens.(*portalToken); ok {
			pt.http = hc
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	layerURL string
	tokens   tokenSource
	limiter  *rate.Limiter
	http     *http.Client
}

// NewClient creates a feature layer client for the given layer REST URL
// (ending in the layer index, e.g. .../FeatureServer/0).
func NewClient(layerURL string, opts ...Option) Client {
	c := &httpClient{
		layerURL: strings.TrimRight(layerURL, "/"),
		tokens:   noToken{},
		limiter:  rate.NewLimiter(rate.Limit(10), 5),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Layer(ctx context.Context) (*LayerInfo, error) {
	var result layerResponse
	if err := c.call(ctx, c.layerURL, url.Values{}, KindConnection, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, newError(KindConnection, result.Error.Code, eris.Wrap(result.Error, "arcgis: layer metadata"))
	}
	return &result.LayerInfo, nil
}

func (c *httpClient) EnsureField(ctx context.Context, field Field) error {
	info, err := c.Layer(ctx)
	if err != nil {
		return err
	}
	if info.HasField(field.Name) {
		return nil
	}

	def, err := json.Marshal(map[string]any{"fields": []Field{field}})
	if err != nil {
		return newError(KindUpdate, 0, eris.Wrap(err, "arcgis: marshal field definition"))
	}

	form := url.Values{"addToDefinition": {string(def)}}
	var result adminResponse
	if err := c.call(ctx, adminURL(c.layerURL)+"/addToDefinition", form, KindUpdate, &result); err != nil {
		return err
	}
	if result.Error != nil {
		return newError(KindUpdate, result.Error.Code, eris.Wrapf(result.Error, "arcgis: add field %s", field.Name))
	}
	if !result.Success {
		return newError(KindUpdate, 0, eris.Errorf("arcgis: add field %s: service reported failure", field.Name))
	}
	return nil
}

func (c *httpClient) Query(ctx context.Context, q Query) (*QueryResult, error) {
	form := queryForm(q)

	var result queryResponse
	if err := c.call(ctx, c.layerURL+"/query", form, KindQuery, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, newError(KindQuery, result.Error.Code, eris.Wrapf(result.Error, "arcgis: query %q", q.Where))
	}
	return &result.QueryResult, nil
}

func (c *httpClient) Count(ctx context.Context, where string) (int, error) {
	form := url.Values{
		"where":           {where},
		"returnCountOnly": {"true"},
	}

	var result queryResponse
	if err := c.call(ctx, c.layerURL+"/query", form, KindQuery, &result); err != nil {
		return 0, err
	}
	if result.Error != nil {
		return 0, newError(KindQuery, result.Error.Code, eris.Wrapf(result.Error, "arcgis: count %q", where))
	}
	if result.Count == nil {
		return 0, newError(KindQuery, 0, eris.New("arcgis: count response missing count"))
	}
	return *result.Count, nil
}

func (c *httpClient) ApplyEdits(ctx context.Context, updates []Update) ([]EditResult, error) {
	payload, err := json.Marshal(updates)
	if err != nil {
		return nil, newError(KindUpdate, 0, eris.Wrap(err, "arcgis: marshal updates"))
	}

	form := url.Values{"updates": {string(payload)}}
	var result editResponse
	if err := c.call(ctx, c.layerURL+"/applyEdits", form, KindUpdate, &result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, newError(KindUpdate, result.Error.Code, eris.Wrap(result.Error, "arcgis: apply edits"))
	}
	return result.UpdateResults, nil
}

// call POSTs a form to the endpoint and decodes the JSON body into out.
// Transport failures map to KindConnection; a rejected token is refreshed
// and the request retried once.
func (c *httpClient) call(ctx context.Context, endpoint string, form url.Values, kind Kind, out any) error {
	retried := false
	for {
		err := c.post(ctx, endpoint, form, kind, out)
		if err == nil {
			return nil
		}

		var ae *Error
		if !retried && errors.As(err, &ae) {
			if se, ok := ae.Err.(*serverError); ok && se.tokenExpired() {
				c.tokens.Invalidate()
				retried = true
				continue
			}
		}
		return err
	}
}

func (c *httpClient) post(ctx context.Context, endpoint string, form url.Values, kind Kind, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return newError(KindConnection, 0, eris.Wrap(err, "arcgis: rate limit wait"))
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	form.Set("f", "json")
	if token != "" {
		form.Set("token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return newError(KindConnection, 0, eris.Wrap(err, "arcgis: create request"))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return newError(KindConnection, 0, eris.Wrap(err, "arcgis: send request"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(KindConnection, 0, eris.Wrap(err, "arcgis: read response"))
	}
	if resp.StatusCode != http.StatusOK {
		return newError(KindConnection, 0, eris.Errorf("arcgis: unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	// The service reports most failures inside HTTP-200 bodies. Decode a
	// bare error first so token rejection is visible regardless of shape.
	var probe struct {
		Error *serverError `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Error != nil && probe.Error.tokenExpired() {
		return newError(kind, probe.Error.Code, probe.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return newError(kind, 0, eris.Wrap(err, "arcgis: unmarshal response"))
	}
	return nil
}

func queryForm(q Query) url.Values {
	form := url.Values{}
	if q.Where != "" {
		form.Set("where", q.Where)
	}
	if len(q.OutFields) > 0 {
		form.Set("outFields", strings.Join(q.OutFields, ","))
	}
	if len(q.OrderBy) > 0 {
		form.Set("orderByFields", strings.Join(q.OrderBy, ","))
	}
	form.Set("returnGeometry", strconv.FormatBool(q.ReturnGeometry))
	if q.Offset > 0 {
		form.Set("resultOffset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		form.Set("resultRecordCount", strconv.Itoa(q.Limit))
	}
	return form
}

// adminURL rewrites a layer REST URL to its admin endpoint, which hosts
// definition edits like addToDefinition.
func adminURL(layerURL string) string {
	return strings.Replace(layerURL, "/rest/services/", "/rest/admin/services/", 1)
}
