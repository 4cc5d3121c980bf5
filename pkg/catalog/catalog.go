// Package catalog defines the storefront product model shared by the conflict
// scanner, the sync engine and the catalog clients, together with the Client
// interface those components consume.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/brightsync/pkg/errors"
)

// ProductID is the storefront's opaque product identifier. The API encodes it
// as a number, the persisted documents as a string; both decode to the same value.
type ProductID string

// UnmarshalJSON accepts a JSON number or string.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.WrapParse("json", "product id", err)
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.WrapParse("json", "product id", err)
	}
	*id = ProductID(n.String())
	return nil
}

// String returns the identifier as text.
func (id ProductID) String() string {
	return string(id)
}

// Less orders ids numerically when both are numeric, lexically otherwise.
func (id ProductID) Less(other ProductID) bool {
	a, errA := strconv.ParseInt(string(id), 10, 64)
	b, errB := strconv.ParseInt(string(other), 10, 64)
	if errA == nil && errB == nil {
		return a < b
	}
	return id < other
}

// Vendor is a product's vendor reference.
type Vendor struct {
	Name string `json:"name"`
}

// Product is a catalog listing entry.
type Product struct {
	ID        ProductID `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Active    *bool     `json:"active,omitempty"`
	UpdatedAt string    `json:"updated_at"`
	Vendors   []Vendor  `json:"vendors,omitempty"`
}

// IsActive reports the active flag; products without one are active.
func (p Product) IsActive() bool {
	return p.Active == nil || *p.Active
}

// TrimmedSKU returns the SKU without surrounding whitespace.
func (p Product) TrimmedSKU() string {
	return strings.TrimSpace(p.SKU)
}

// VendorNames returns the distinct non-empty vendor names in sorted order.
func (p Product) VendorNames() []string {
	return VendorNames(p.Vendors)
}

// VendorNames returns the distinct non-empty names of vendors in sorted order.
func VendorNames(vendors []Vendor) []string {
	seen := make(map[string]struct{}, len(vendors))
	names := make([]string, 0, len(vendors))
	for _, v := range vendors {
		if v.Name == "" {
			continue
		}
		if _, ok := seen[v.Name]; ok {
			continue
		}
		seen[v.Name] = struct{}{}
		names = append(names, v.Name)
	}
	sort.Strings(names)
	return names
}

// SubOption is a selectable value of an option, optionally carrying a variant code.
type SubOption struct {
	ID       ProductID `json:"id"`
	Name     string    `json:"name"`
	SubSKU   string    `json:"sub_sku"`
	ImageSrc string    `json:"image_src"`
}

// Option is a product option such as size or color.
type Option struct {
	ID         ProductID   `json:"id"`
	Name       string      `json:"name"`
	Position   *int        `json:"position,omitempty"`
	SubOptions []SubOption `json:"sub_options,omitempty"`
}

// Image is a product gallery image.
type Image struct {
	Src     string `json:"src"`
	Primary bool   `json:"primary"`
}

// InventoryRow links a sellable final SKU to its product.
type InventoryRow struct {
	ProductID ProductID `json:"product_id"`
	FinalSKU  string    `json:"final_sku"`
}

// ProductDetail is a product with its option tree and gallery.
type ProductDetail struct {
	Product
	Image   string   `json:"image,omitempty"`
	Options []Option `json:"options,omitempty"`
	Images  []Image  `json:"images,omitempty"`
}

// PrimaryImage returns the gallery image flagged primary, else the first one.
func (d *ProductDetail) PrimaryImage() string {
	for _, img := range d.Images {
		if img.Primary && img.Src != "" {
			return img.Src
		}
	}
	for _, img := range d.Images {
		if img.Src != "" {
			return img.Src
		}
	}
	return ""
}

// Client is read access to a store's remote catalog. Listing operations
// return ListFetchError on failure; detail operations return DetailFetchError.
type Client interface {
	FetchAllProducts(ctx context.Context) ([]Product, error)
	FetchProductsUpdatedSince(ctx context.Context, since string) ([]Product, error)
	FetchProductDetail(ctx context.Context, id ProductID) (*ProductDetail, error)
	FetchInventory(ctx context.Context) ([]InventoryRow, error)
}

// InventoryIndex groups inventory rows by product id, keeping listing order.
type InventoryIndex map[ProductID][]string

// IndexInventory builds an InventoryIndex, dropping rows without a final SKU or product id.
func IndexInventory(rows []InventoryRow) InventoryIndex {
	idx := make(InventoryIndex)
	for _, row := range rows {
		if row.ProductID == "" || row.FinalSKU == "" {
			continue
		}
		idx[row.ProductID] = append(idx[row.ProductID], row.FinalSKU)
	}
	return idx
}

// Has reports whether the product has at least one inventory record.
func (idx InventoryIndex) Has(id ProductID) bool {
	return len(idx[id]) > 0
}
