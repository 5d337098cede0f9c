package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/knowbase/wikibase/pkg/wikibase"
	"github.com/knowbase/wikibase/pkg/wikibase/auth"
	"github.com/knowbase/wikibase/pkg/wikibase/diff"
	"github.com/knowbase/wikibase/pkg/wikibase/errors"
	"github.com/knowbase/wikibase/pkg/wikibase/types/entities"
)

//go:generate moq -rm -out ../../test/entityclient_mock.go . EntityClient

// EntityClient talks to a single knowledge base store over its action
// API.
type EntityClient interface {
	FetchEntity(ctx context.Context, entityID string) (*entities.Entity, error)
	SubmitEntity(ctx context.Context, submission Submission) (*wikibase.SubmitEntityResult, error)
	FetchCSRFToken(ctx context.Context) (string, error)
}

// Submission is one edit attempt: a change set plus the edit token and
// submission modifiers that accompany it. The target entity and base
// revision travel inside the patch. A patch without an entity id
// creates a new entity.
type Submission struct {
	Patch   *diff.Patch
	Token   string
	Summary string
	Bot     bool
}

func Debug(enabled string) func(*wbClient) {
	return func(c *wbClient) {
		c.debug = (enabled == "true")
	}
}

func Credentials(provider auth.Provider) func(*wbClient) {
	return func(c *wbClient) {
		c.provider = provider
	}
}

func UserAgent(userAgent string) func(*wbClient) {
	return func(c *wbClient) {
		c.userAgent = userAgent
	}
}

// Maxlag sets the lag threshold in seconds that the store may reject
// writes over. Zero disables the parameter.
func Maxlag(seconds int) func(*wbClient) {
	return func(c *wbClient) {
		c.maxlag = seconds
	}
}

// Transport overrides the HTTP transport used for store calls.
func Transport(rt http.RoundTripper) func(*wbClient) {
	return func(c *wbClient) {
		c.transport = rt
	}
}

// NewEntityClient creates a client against the store's action API
// endpoint, e.g. https://www.wikidata.org/w/api.php.
func NewEntityClient(endpoint string, options ...func(*wbClient)) EntityClient {
	c := &wbClient{
		apiURL:    endpoint,
		provider:  auth.Anonymous(),
		userAgent: defaultUserAgent,
		maxlag:    5,
		transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeEntityID   string = "entity-id"
	TraceAttributeRevisionID string = "revision-id"

	defaultUserAgent = "knowbase-wikibase-client/1.0"
)

var tracer = otel.Tracer("wikibase-client")

type wbClient struct {
	apiURL    string
	provider  auth.Provider
	userAgent string
	maxlag    int
	debug     bool
	transport http.RoundTripper
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type apiEnvelope struct {
	Error    *apiError                  `json:"error"`
	Entities map[string]json.RawMessage `json:"entities"`
	Entity   json.RawMessage            `json:"entity"`
	Query    *struct {
		Tokens map[string]string `json:"tokens"`
	} `json:"query"`
	Success int `json:"success"`
}

func (c wbClient) FetchEntity(ctx context.Context, entityID string) (*entities.Entity, error) {
	var err error

	ctx, span := tracer.Start(ctx, "fetch-entity",
		trace.WithAttributes(attribute.String(TraceAttributeEntityID, entityID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("ids", entityID)
	params.Set("format", "json")

	envelope, err := c.callStoreAPI(ctx, http.MethodGet, params)
	if err != nil {
		return nil, err
	}

	raw, ok := envelope.Entities[entityID]
	if !ok {
		// redirects come back under the canonical id
		for _, body := range envelope.Entities {
			raw = body
			ok = true
			break
		}
	}

	if !ok {
		err = errors.NewNotFoundError("store returned no entity for " + entityID)
		return nil, err
	}

	var entity *entities.Entity
	entity, err = entities.NewFromJSON(raw)
	if err != nil {
		return nil, err
	}

	return entity, nil
}

func (c wbClient) SubmitEntity(ctx context.Context, submission Submission) (*wikibase.SubmitEntityResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "submit-entity",
		trace.WithAttributes(attribute.String(TraceAttributeEntityID, submission.Patch.EntityID)),
		trace.WithAttributes(attribute.Int64(TraceAttributeRevisionID, submission.Patch.BaseRevisionID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var data []byte
	data, err = json.Marshal(submission.Patch)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("action", "wbeditentity")
	params.Set("format", "json")
	params.Set("token", submission.Token)
	params.Set("data", string(data))

	if submission.Patch.EntityID != "" {
		params.Set("id", submission.Patch.EntityID)
	} else {
		params.Set("new", string(submission.Patch.Kind))
	}

	if submission.Patch.BaseRevisionID > 0 {
		params.Set("baserevid", strconv.FormatInt(submission.Patch.BaseRevisionID, 10))
	}

	if submission.Summary != "" {
		params.Set("summary", submission.Summary)
	}

	if submission.Bot {
		params.Set("bot", "1")
	}

	envelope, err := c.callStoreAPI(ctx, http.MethodPost, params)
	if err != nil {
		return nil, err
	}

	if len(envelope.Entity) == 0 {
		err = fmt.Errorf("store accepted the edit but returned no entity (%w)", errors.ErrInternal)
		return nil, err
	}

	var committed *entities.Entity
	committed, err = entities.NewFromJSON(envelope.Entity)
	if err != nil {
		return nil, err
	}

	return wikibase.NewSubmitEntityResult(committed, committed.LastRevisionID()), nil
}

func (c wbClient) FetchCSRFToken(ctx context.Context) (string, error) {
	var err error

	ctx, span := tracer.Start(ctx, "fetch-csrf-token")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")
	params.Set("type", "csrf")
	params.Set("format", "json")

	envelope, err := c.callStoreAPI(ctx, http.MethodGet, params)
	if err != nil {
		return "", err
	}

	if envelope.Query == nil || envelope.Query.Tokens["csrftoken"] == "" {
		err = errors.NewTokenError("store returned no csrf token")
		return "", err
	}

	return envelope.Query.Tokens["csrftoken"], nil
}

func (c wbClient) callStoreAPI(ctx context.Context, method string, params url.Values) (*apiEnvelope, error) {
	httpClient := http.Client{
		Transport: c.transport,
	}

	if c.maxlag > 0 {
		params.Set("maxlag", strconv.Itoa(c.maxlag))
	}

	endpoint := c.apiURL
	var body io.Reader

	if method == http.MethodGet {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if err := c.provider.Sign(req); err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError("failed to send request: " + err.Error())
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransportError("failed to read response body: " + err.Error())
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log := logging.GetFromContext(ctx)
		log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
			return nil, errors.NewRateLimitError(
				fmt.Sprintf("store returned status code %d", resp.StatusCode),
				retryAfterFrom(resp),
			)
		}
		return nil, errors.NewTransportError(
			fmt.Sprintf("store returned status code %d", resp.StatusCode),
		)
	}

	envelope := &apiEnvelope{}
	if err := json.Unmarshal(respBody, envelope); err != nil {
		return nil, errors.NewDecodeError("response", err.Error())
	}

	if envelope.Error != nil {
		return nil, errors.NewErrorFromAPIResponse(
			envelope.Error.Code, envelope.Error.Info, retryAfterFrom(resp),
		)
	}

	return envelope, nil
}

func retryAfterFrom(resp *http.Response) time.Duration {
	val := resp.Header.Get("Retry-After")
	if val == "" {
		return 0
	}

	seconds, err := strconv.Atoi(val)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}
