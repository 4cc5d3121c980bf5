// Package fulfillment is the HTTP client of the fulfillment platform's
// product API. It implements push.Fulfillment.
package fulfillment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/agentstation/brightsync/internal/transport"
	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/push"
	"github.com/agentstation/brightsync/pkg/tags"
)

// ServiceName identifies the fulfillment platform in errors and logs.
const ServiceName = "fulfillment"

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://ssapi.shipstation.com"

// Client talks to the fulfillment product API with basic auth.
type Client struct {
	http    *transport.Client
	baseURL string

	mu sync.Mutex
	// raw keeps each fetched product's full document so updates send back
	// the fields this client does not model.
	raw map[string]map[string]json.RawMessage
}

var _ push.Fulfillment = (*Client)(nil)

// New creates a client. An empty baseURL selects DefaultBaseURL.
func New(baseURL, key, secret string, opts ...transport.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	auth := &transport.BasicAuth{Username: key, Password: secret}
	return &Client{
		http:    transport.New(ServiceName, auth, opts...),
		baseURL: strings.TrimRight(baseURL, "/"),
		raw:     make(map[string]map[string]json.RawMessage),
	}
}

type productList struct {
	Products []map[string]json.RawMessage `json:"products"`
}

// FindBySKU returns the first product carrying sku, or a NotFoundError.
func (c *Client) FindBySKU(ctx context.Context, sku string) (*push.Product, error) {
	var list productList
	endpoint := c.baseURL + "/products?" + url.Values{"sku": {sku}}.Encode()
	if err := c.http.GetJSON(ctx, endpoint, &list); err != nil {
		return nil, err
	}
	if len(list.Products) == 0 {
		return nil, errors.NewNotFoundError("fulfillment product", sku)
	}

	doc := list.Products[0]
	p, err := decode(doc)
	if err != nil {
		return nil, err
	}
	if p.SKU == "" {
		p.SKU = sku
	}
	c.remember(p.ID, doc)
	return p, nil
}

// UpdateProduct replaces the product's name, images and tags, keeping the
// other fields of the document last fetched for it.
func (c *Client) UpdateProduct(ctx context.Context, p *push.Product) error {
	if p.ID == "" {
		return errors.NewValidationError("productId", p.ID, "must not be empty")
	}
	doc := c.recall(p.ID)
	if err := encode(doc, p); err != nil {
		return err
	}
	endpoint := c.baseURL + "/products/" + url.PathEscape(p.ID)
	return c.http.SendJSON(ctx, http.MethodPut, endpoint, doc, nil)
}

func (c *Client) remember(id string, doc map[string]json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw[id] = doc
}

func (c *Client) recall(id string) map[string]json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc := make(map[string]json.RawMessage, len(c.raw[id])+6)
	for k, v := range c.raw[id] {
		doc[k] = v
	}
	return doc
}

func decode(doc map[string]json.RawMessage) (*push.Product, error) {
	p := &push.Product{}
	fields := []struct {
		key    string
		target any
	}{
		{"sku", &p.SKU},
		{"name", &p.Name},
		{"imageUrl", &p.ImageURL},
		{"thumbnailUrl", &p.ThumbnailURL},
		{"tags", &p.Tags},
	}
	var id catalog.ProductID
	if raw, ok := doc["productId"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, errors.WrapParse("json", "productId", err)
		}
	}
	p.ID = id.String()
	for _, f := range fields {
		raw, ok := doc[f.key]
		if !ok || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, f.target); err != nil {
			return nil, errors.WrapParse("json", f.key, err)
		}
	}
	if p.Tags == nil {
		p.Tags = []tags.Ref{}
	}
	return p, nil
}

func encode(doc map[string]json.RawMessage, p *push.Product) error {
	set := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return errors.WrapParse("json", key, err)
		}
		doc[key] = data
		return nil
	}
	if _, ok := doc["productId"]; !ok {
		var id any = p.ID
		if _, err := strconv.ParseInt(p.ID, 10, 64); err == nil {
			id = json.Number(p.ID)
		}
		if err := set("productId", id); err != nil {
			return err
		}
	}
	for key, v := range map[string]any{
		"sku":          p.SKU,
		"name":         p.Name,
		"imageUrl":     p.ImageURL,
		"thumbnailUrl": p.ThumbnailURL,
		"tags":         p.Tags,
	} {
		if err := set(key, v); err != nil {
			return err
		}
	}
	return nil
}
