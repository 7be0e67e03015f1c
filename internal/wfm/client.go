package wfm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.warframe.market/v1"

// Client is a rate-limited warframe.market API client. The marketplace
// sits behind Cloudflare; the shared limiter keeps the whole collector
// under the configured requests/sec no matter how many goroutines poll.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// Options configures a Client. Zero values use the defaults.
type Options struct {
	BaseURL        string
	Platform       string  // "pc", "ps4", "xbox", "switch"
	Language       string  // "en"
	UserAgent      string
	RequestsPerSec float64
	Timeout        time.Duration
}

// NewClient creates a client for the given platform.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Platform == "" {
		opts.Platform = "pc"
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "primewatch/1.0"
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	httpc := resty.New()
	httpc.SetBaseURL(opts.BaseURL)
	httpc.SetTimeout(opts.Timeout)
	httpc.SetHeader("Accept", "application/json")
	httpc.SetHeader("User-Agent", opts.UserAgent)
	httpc.SetHeader("platform", opts.Platform)
	httpc.SetHeader("language", opts.Language)

	return &Client{
		http:    httpc,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
	}
}

// getJSON performs a throttled GET and decodes the response into dst.
func (c *Client) getJSON(ctx context.Context, path string, dst interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: wfm %d", path, resp.StatusCode())
	}
	if err := json.Unmarshal(resp.Body(), dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// ListItems returns the full item catalog. Some API snapshots key the
// items list by language; both shapes normalize to a flat list.
func (c *Client) ListItems(ctx context.Context) ([]Item, error) {
	var payload itemsPayload
	if err := c.getJSON(ctx, "/items", &payload); err != nil {
		return nil, err
	}

	var items []Item
	if err := json.Unmarshal(payload.Payload.Items, &items); err == nil {
		return items, nil
	}

	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(payload.Payload.Items, &keyed); err != nil {
		return nil, fmt.Errorf("items payload: unrecognized shape")
	}
	for _, raw := range keyed {
		if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
			return items, nil
		}
	}
	return nil, fmt.Errorf("items payload: no item list found")
}

// ItemOrders returns all listed orders for an item.
func (c *Client) ItemOrders(ctx context.Context, itemURL string) ([]Order, error) {
	var payload ordersPayload
	if err := c.getJSON(ctx, "/items/"+itemURL+"/orders", &payload); err != nil {
		return nil, err
	}
	return payload.Payload.Orders, nil
}

// ItemStatistics returns the closed-trade statistics buckets for an item.
func (c *Client) ItemStatistics(ctx context.Context, itemURL string) (*Statistics, error) {
	var payload statisticsPayload
	if err := c.getJSON(ctx, "/items/"+itemURL+"/statistics", &payload); err != nil {
		return nil, err
	}
	return &Statistics{
		Last48Hours: payload.Payload.StatisticsClosed.Hours48,
		Last90Days:  payload.Payload.StatisticsClosed.Days90,
	}, nil
}

// SetComponents returns the (part, quantity) links for a set item, or an
// empty slice when the item is not a set.
func (c *Client) SetComponents(ctx context.Context, itemURL string) ([]SetComponent, error) {
	var payload itemDetailPayload
	if err := c.getJSON(ctx, "/items/"+itemURL, &payload); err != nil {
		return nil, err
	}

	var out []SetComponent
	for _, n := range payload.Payload.Item.ItemsInSet {
		if n.SetRoot || n.URLName == "" {
			continue
		}
		qty := n.QuantityForSet
		if qty < 1 {
			qty = 1
		}
		out = append(out, SetComponent{Set: itemURL, Part: n.URLName, Quantity: qty})
	}
	return out, nil
}

// IsSetURL reports whether an item identifier names a set. Component
// fetches are restricted to these to keep the API call budget small.
func IsSetURL(itemURL string) bool {
	const suffix = "_set"
	return len(itemURL) > len(suffix) && itemURL[len(itemURL)-len(suffix):] == suffix
}
