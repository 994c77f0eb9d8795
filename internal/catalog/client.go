package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quotedesk/checkout/internal/domain"
)

const defaultTimeout = 8 * time.Second

var tracer = otel.Tracer("github.com/quotedesk/checkout/internal/catalog")

// Client calls the catalog service over HTTP.
type Client struct {
	baseURL  string
	http     *http.Client
	recorder Recorder
}

// Option customises the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every catalog call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRecorder reports call outcomes.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewClient constructs a catalog client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("catalog: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("catalog: invalid base url: %w", err)
	}
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: defaultTimeout},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type languagesPayload struct {
	Languages []string `json:"languages"`
}

type certificationsPayload struct {
	Certifications  []string `json:"certifications"`
	TranslationType string   `json:"translationType"`
}

type pricingPayload struct {
	PricePerPage    decimal.NullDecimal `json:"pricePerPage"`
	TranslationType string              `json:"translationType"`
	FirstLegPrice   decimal.NullDecimal `json:"firstLegPrice"`
	SecondLegPrice  decimal.NullDecimal `json:"secondLegPrice"`
	Message         string              `json:"message"`
}

// ListLanguages returns the ordered language list.
func (c *Client) ListLanguages(ctx context.Context) ([]string, error) {
	var payload languagesPayload
	if err := c.get(ctx, endpointLanguages, nil, &payload); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(payload.Languages))
	for _, lang := range payload.Languages {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out, nil
}

// ListCertifications returns the certification options and route for the tier and pair.
func (c *Client) ListCertifications(ctx context.Context, tier domain.ServiceTier, pair domain.LanguagePair) (Certifications, error) {
	if !pair.Valid() {
		return Certifications{}, fmt.Errorf("catalog: invalid language pair %q -> %q", pair.From, pair.To)
	}
	query := url.Values{"from": {pair.From}, "to": {pair.To}}
	var payload certificationsPayload
	if err := c.get(ctx, certificationsEndpoint(tier), query, &payload); err != nil {
		return Certifications{}, err
	}
	options := make([]string, 0, len(payload.Certifications))
	for _, cert := range payload.Certifications {
		if cert = strings.TrimSpace(cert); cert != "" {
			options = append(options, cert)
		}
	}
	return Certifications{Options: options, Route: domain.ParseTranslationRoute(payload.TranslationType)}, nil
}

// GetPricing returns the per-page price for the tuple. A response without a usable rate yields a
// *PricingUnavailableError carrying the server message.
func (c *Client) GetPricing(ctx context.Context, pair domain.LanguagePair, priority domain.Priority, certification string) (domain.PricingQuote, error) {
	if !pair.Valid() {
		return domain.PricingQuote{}, fmt.Errorf("catalog: invalid language pair %q -> %q", pair.From, pair.To)
	}
	query := url.Values{
		"from":          {pair.From},
		"to":            {pair.To},
		"priority":      {string(priority)},
		"certification": {certification},
	}
	var payload pricingPayload
	if err := c.get(ctx, endpointPricing, query, &payload); err != nil {
		// A 4xx carrying a pricing body with a message is a refusal, not an outage.
		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError {
			var declined pricingPayload
			if json.Unmarshal(se.body, &declined) == nil && strings.TrimSpace(declined.Message) != "" {
				return domain.PricingQuote{}, &PricingUnavailableError{Reason: strings.TrimSpace(declined.Message)}
			}
		}
		return domain.PricingQuote{}, err
	}
	if !payload.PricePerPage.Valid || !payload.PricePerPage.Decimal.IsPositive() {
		return domain.PricingQuote{}, &PricingUnavailableError{Reason: strings.TrimSpace(payload.Message)}
	}
	return domain.PricingQuote{
		PricePerPage:   payload.PricePerPage.Decimal,
		Route:          domain.ParseTranslationRoute(payload.TranslationType),
		FirstLegPrice:  payload.FirstLegPrice,
		SecondLegPrice: payload.SecondLegPrice,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) (err error) {
	ctx, span := tracer.Start(ctx, "catalog."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.recorder.CatalogCall(endpoint, outcome)
		span.End()
	}()

	target := c.baseURL + "/" + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	span.SetAttributes(attribute.String("catalog.endpoint", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, &statusError{code: resp.StatusCode, body: body})
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %w", ErrUnavailable, endpoint, err)
	}
	return nil
}

type statusError struct {
	code int
	body []byte
}

func (e *statusError) Error() string {
	body := strings.TrimSpace(string(e.body))
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("status %d: %s", e.code, body)
}
