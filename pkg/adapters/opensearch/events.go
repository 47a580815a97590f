package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/concierge/internal/logging"
	"github.com/aretw0/concierge/pkg/args"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	defaultSize   = 5
	defaultWindow = "now+14d/d"
	maxSize       = 50
)

// sourceFields are the document fields returned to the model.
var sourceFields = []string{
	"url", "dateStart", "dateEnd", "title", "hosts", "group", "address",
	"guests", "attendees", "shortDescription", "cover", "tags", "venue",
	"online", "price", "spotsLeft",
}

// compositeScore boosts events by their precomputed quality signals.
const compositeScore = `
double compositeScore = 0;
compositeScore += doc['popularity'].value * 0.1;
compositeScore += doc['uniqueness'].value * 0.2;
compositeScore += doc['venue_niceness'].value * 0.15;
compositeScore += doc['free_admision'].value * 0.2;
compositeScore += doc['drinks_provided'].value * 0.1;
compositeScore += doc['food_provided'].value * 0.1;
compositeScore += doc['quietness'].value * 0.05;
compositeScore += doc['proximity'].value * 0.05;
compositeScore += doc['non_commercial'].value * 0.025;
compositeScore += doc['no_additional_expenses'].value * 0.025;
compositeScore = Math.min(Math.max(compositeScore, 0), 1);
return _score * (1 + (compositeScore - 0.5) * 2);
`

// NotFound is the payload returned when a lookup has no hits.
const NotFound = "NOT_FOUND"

// SearchArgs are the arguments of search_events.
type SearchArgs struct {
	StartTime time.Time `json:"start_time,omitempty" jsonschema:"description=Start of the date range in RFC 3339 (UTC). Defaults to now."`
	EndTime   time.Time `json:"end_time,omitempty" jsonschema:"description=End of the date range in RFC 3339 (UTC). Defaults to 14 days from now."`
	Query     string    `json:"query,omitempty" jsonschema:"description=Optional free text matched against titles and descriptions."`
	Size      int       `json:"size,omitempty" validate:"omitempty,min=1,max=50" jsonschema:"description=Maximum number of events (default 5)."`
}

// DetailsArgs are the arguments of get_event_details.
type DetailsArgs struct {
	URL string `json:"url" validate:"required,url" jsonschema:"description=The URL of the event page."`
}

// Events serves the event lookup capabilities.
type Events struct {
	client func(ctx context.Context) (*opensearch.Client, error)
	index  string
	logger *slog.Logger
}

// Option configures Events.
type Option func(*Events)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Events) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIndex overrides the index name.
func WithIndex(index string) Option {
	return func(e *Events) {
		if index != "" {
			e.index = index
		}
	}
}

// New creates the event effects over a lazily connected cluster.
func New(cfg Config, opts ...Option) *Events {
	opts = append([]Option{WithIndex(cfg.Index)}, opts...)
	return NewWithClient(Connect(cfg), opts...)
}

// NewWithClient uses an existing client factory.
func NewWithClient(client func(ctx context.Context) (*opensearch.Client, error), opts ...Option) *Events {
	e := &Events{
		client: client,
		index:  DefaultIndex,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search implements search_events: events starting in a date range, ranked by
// relevance and quality.
func (e *Events) Search(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	var in SearchArgs
	if err := args.Decode(req.Args, &in); err != nil {
		return domain.Failed(err.Error()), nil
	}
	if !in.StartTime.IsZero() && !in.EndTime.IsZero() && !in.EndTime.After(in.StartTime) {
		return domain.Failed("end_time must be after start_time"), nil
	}

	gte, lte := "now", defaultWindow
	if !in.StartTime.IsZero() {
		gte = in.StartTime.UTC().Format(time.RFC3339)
	}
	if !in.EndTime.IsZero() {
		lte = in.EndTime.UTC().Format(time.RFC3339)
	}
	size := in.Size
	if size == 0 {
		size = defaultSize
	}

	must := []any{
		map[string]any{"range": map[string]any{"dateStart": map[string]any{
			"gte":    gte,
			"lte":    lte,
			"format": "strict_date_optional_time",
		}}},
	}
	if in.Query != "" {
		must = append(must, map[string]any{"multi_match": map[string]any{
			"query":  in.Query,
			"fields": []string{"title^2", "shortDescription", "tags"},
		}})
	}
	body := map[string]any{
		"_source": sourceFields,
		"query": map[string]any{"function_score": map[string]any{
			"query":        map[string]any{"bool": map[string]any{"must": must}},
			"script_score": map[string]any{"script": map[string]any{"source": compositeScore}},
		}},
		"sort": []any{
			map[string]any{"_score": "desc"},
			map[string]any{"_id": "asc"},
		},
	}

	hits, err := e.search(ctx, body, size)
	if err != nil {
		return domain.EffectResult{}, err
	}
	e.logger.Info("events searched", "hits", len(hits), "from", gte, "to", lte)

	if len(hits) == 0 {
		return domain.EffectResult{Payload: NotFound}, nil
	}
	res := domain.EffectResult{Payload: hits}
	for _, h := range hits {
		url, _ := h["url"].(string)
		if url == "" {
			continue
		}
		res.Observations = append(res.Observations, domain.Observation{
			Key:        url,
			Source:     domain.SourceSearch,
			Found:      domain.Bool(true),
			Registered: domain.Bool(false),
			Details:    h,
		})
	}
	return res, nil
}

// Details implements get_event_details: an exact lookup by URL.
func (e *Events) Details(ctx context.Context, req domain.Request) (domain.EffectResult, error) {
	var in DetailsArgs
	if err := args.Decode(req.Args, &in); err != nil {
		return domain.Failed(err.Error()), nil
	}

	body := map[string]any{
		"_source": sourceFields,
		"query":   map[string]any{"term": map[string]any{"url": in.URL}},
	}
	hits, err := e.search(ctx, body, 1)
	if err != nil {
		return domain.EffectResult{}, err
	}

	if len(hits) == 0 {
		return domain.EffectResult{
			Payload: NotFound,
			Observations: []domain.Observation{
				{Key: in.URL, Source: domain.SourceDetails, Found: domain.Bool(false)},
			},
		}, nil
	}
	return domain.EffectResult{
		Payload: hits[0],
		Observations: []domain.Observation{
			{Key: in.URL, Source: domain.SourceDetails, Found: domain.Bool(true), Details: hits[0]},
		},
	}, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *Events) search(ctx context.Context, body map[string]any, size int) ([]map[string]any, error) {
	client, err := e.client(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	if size > maxSize {
		size = maxSize
	}
	req := opensearchapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(raw),
		Size:  &size,
	}

	res, err := req.Do(ctx, client)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: opensearch request failed: %v", domain.ErrServiceUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		if unavailable(res.StatusCode) {
			return nil, fmt.Errorf("%w: opensearch returned %s", domain.ErrServiceUnavailable, res.Status())
		}
		return nil, fmt.Errorf("search rejected (%s): %s", res.Status(), bytes.TrimSpace(msg))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
