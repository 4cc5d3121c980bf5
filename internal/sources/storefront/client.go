// Package storefront is the HTTP catalog client for BrightStores
// storefronts. Listing endpoints are paged with a fixed page size until an
// empty page comes back.
package storefront

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/brightsync/internal/transport"
	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/logging"
)

// ServiceName identifies the storefront in errors and logs.
const ServiceName = "storefront"

// Client implements catalog.Client against the storefront REST API.
type Client struct {
	http     *transport.Client
	baseURL  string
	store    string
	pageSize int
	maxPages int
}

var _ catalog.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	pageSize  int
	maxPages  int
	transport []transport.Option
}

// WithPageSize sets the listing page size.
func WithPageSize(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithMaxPages bounds how many pages one listing may read.
func WithMaxPages(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.maxPages = n
		}
	}
}

// WithTransport passes options to the underlying transport client.
func WithTransport(opts ...transport.Option) Option {
	return func(o *clientOptions) {
		o.transport = append(o.transport, opts...)
	}
}

// New creates a client for store.
func New(store *config.Store, opts ...Option) *Client {
	o := &clientOptions{
		pageSize: constants.CatalogPageSize,
		maxPages: constants.MaxCatalogPages,
	}
	for _, opt := range opts {
		opt(o)
	}
	auth := &transport.QueryAuth{Param: "token", Value: store.Token}
	return &Client{
		http:     transport.New(ServiceName, auth, o.transport...),
		baseURL:  strings.TrimRight(store.URL, "/") + constants.StorefrontAPIPrefix,
		store:    store.Name,
		pageSize: o.pageSize,
		maxPages: o.maxPages,
	}
}

// FetchAllProducts lists every product of the store.
func (c *Client) FetchAllProducts(ctx context.Context) ([]catalog.Product, error) {
	return paginate[catalog.Product](ctx, c, "products", "products", nil)
}

// FetchProductsUpdatedSince lists products updated at or after since.
func (c *Client) FetchProductsUpdatedSince(ctx context.Context, since string) ([]catalog.Product, error) {
	return paginate[catalog.Product](ctx, c, "products", "products", url.Values{"updated_at_from": {since}})
}

// FetchInventory lists every inventory record of the store.
func (c *Client) FetchInventory(ctx context.Context) ([]catalog.InventoryRow, error) {
	return paginate[catalog.InventoryRow](ctx, c, "inventories", "inventories", nil)
}

// FetchProductDetail assembles a product with its options, their
// sub-options and its gallery images. Any failing request fails the whole
// detail with a DetailFetchError.
func (c *Client) FetchProductDetail(ctx context.Context, id catalog.ProductID) (*catalog.ProductDetail, error) {
	pid := url.PathEscape(id.String())
	detail := &catalog.ProductDetail{}

	var raw map[string]json.RawMessage
	if err := c.http.GetJSON(ctx, c.endpoint("products/"+pid, nil), &raw); err != nil {
		return nil, errors.NewDetailFetchError(id.String(), "product", err)
	}
	if err := decodeProduct(raw, detail); err != nil {
		return nil, errors.NewDetailFetchError(id.String(), "product", err)
	}

	var options []catalog.Option
	if err := c.getField(ctx, "products/"+pid+"/options", "options", &options); err != nil {
		return nil, errors.NewDetailFetchError(id.String(), "options", err)
	}
	for i := range options {
		oid := url.PathEscape(options[i].ID.String())
		var subs []catalog.SubOption
		if err := c.getField(ctx, "products/"+pid+"/options/"+oid+"/sub_options", "sub_options", &subs); err != nil {
			return nil, errors.NewDetailFetchError(id.String(), "sub_options", err)
		}
		options[i].SubOptions = subs
	}
	detail.Options = options

	if err := c.getField(ctx, "products/"+pid+"/images", "images", &detail.Images); err != nil {
		return nil, errors.NewDetailFetchError(id.String(), "images", err)
	}

	if detail.ID == "" {
		detail.ID = id
	}
	logging.Ctx(ctx).Debug().
		Str("product_id", id.String()).
		Int("options", len(detail.Options)).
		Int("images", len(detail.Images)).
		Msg("Fetched product detail")
	return detail, nil
}

// decodeProduct accepts the product either bare or wrapped as {"product": {...}}.
func decodeProduct(raw map[string]json.RawMessage, detail *catalog.ProductDetail) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return errors.WrapParse("json", "product", err)
	}
	if inner, ok := raw["product"]; ok && len(inner) > 0 && inner[0] == '{' {
		data = inner
	}
	if err := json.Unmarshal(data, detail); err != nil {
		return errors.WrapParse("json", "product", err)
	}
	return nil
}

// getField fetches resource and decodes the array under field into target.
// A missing field leaves target empty.
func (c *Client) getField(ctx context.Context, resource, field string, target any) error {
	var body map[string]json.RawMessage
	if err := c.http.GetJSON(ctx, c.endpoint(resource, nil), &body); err != nil {
		return err
	}
	raw, ok := body[field]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errors.WrapParse("json", resource, err)
	}
	return nil
}

func (c *Client) endpoint(resource string, query url.Values) string {
	u := c.baseURL + "/" + resource
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// paginate reads pages of resource until one is empty, concatenating the
// arrays found under field in page order.
func paginate[T any](ctx context.Context, c *Client, resource, field string, params url.Values) ([]T, error) {
	log := logging.Ctx(ctx)
	var out []T
	for page := 1; page <= c.maxPages; page++ {
		query := url.Values{}
		for k, v := range params {
			query[k] = v
		}
		query.Set("per_page", strconv.Itoa(c.pageSize))
		query.Set("page", strconv.Itoa(page))

		var batch []T
		if err := c.getField(ctx, resource+"?"+query.Encode(), field, &batch); err != nil {
			return nil, errors.NewListFetchError(c.store, resource, page, err)
		}
		if len(batch) == 0 {
			log.Debug().Str("resource", resource).Int("pages", page-1).Int("items", len(out)).Msg("Listing complete")
			return out, nil
		}
		out = append(out, batch...)
	}
	return nil, errors.NewListFetchError(c.store, resource, c.maxPages, errors.New("page limit reached"))
}
