// Package catalogtest provides an in-memory catalog.Client for tests.
package catalogtest

import (
	"context"
	"sync"

	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/errors"
)

// Fake is an in-memory catalog.Client. It records how often each
// operation is called. Error fields, when set, are returned by the
// corresponding operation.
type Fake struct {
	Products  []catalog.Product
	Details   map[catalog.ProductID]*catalog.ProductDetail
	Inventory []catalog.InventoryRow

	ListErr      error
	InventoryErr error
	DetailErrs   map[catalog.ProductID]error

	mu            sync.Mutex
	listCalls     int
	sinceCalls    []string
	inventoryCall int
	detailCalls   map[catalog.ProductID]int
}

var _ catalog.Client = (*Fake)(nil)

// AddProduct adds a listing product and, when detail is non-nil, its detail.
func (f *Fake) AddProduct(p catalog.Product, detail *catalog.ProductDetail) {
	f.Products = append(f.Products, p)
	if detail != nil {
		if f.Details == nil {
			f.Details = make(map[catalog.ProductID]*catalog.ProductDetail)
		}
		detail.Product = p
		f.Details[p.ID] = detail
	}
}

// FetchAllProducts implements catalog.Client.
func (f *Fake) FetchAllProducts(_ context.Context) ([]catalog.Product, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]catalog.Product(nil), f.Products...), nil
}

// FetchProductsUpdatedSince implements catalog.Client. Products whose
// timestamp is unparsable are returned as updated.
func (f *Fake) FetchProductsUpdatedSince(_ context.Context, since string) ([]catalog.Product, error) {
	f.mu.Lock()
	f.sinceCalls = append(f.sinceCalls, since)
	f.mu.Unlock()

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	horizon, ok := catalog.ParseTimestamp(since)
	var out []catalog.Product
	for _, p := range f.Products {
		ts, tsOK := catalog.ParseTimestamp(p.UpdatedAt)
		if !ok || !tsOK || !ts.Time.Before(horizon.Time) {
			out = append(out, p)
		}
	}
	return out, nil
}

// FetchProductDetail implements catalog.Client.
func (f *Fake) FetchProductDetail(_ context.Context, id catalog.ProductID) (*catalog.ProductDetail, error) {
	f.mu.Lock()
	if f.detailCalls == nil {
		f.detailCalls = make(map[catalog.ProductID]int)
	}
	f.detailCalls[id]++
	f.mu.Unlock()

	if err := f.DetailErrs[id]; err != nil {
		return nil, errors.NewDetailFetchError(id.String(), "product", err)
	}
	if d, ok := f.Details[id]; ok {
		cp := *d
		return &cp, nil
	}
	for _, p := range f.Products {
		if p.ID == id {
			return &catalog.ProductDetail{Product: p}, nil
		}
	}
	return nil, errors.NewDetailFetchError(id.String(), "product", errors.NewNotFoundError("product", id.String()))
}

// FetchInventory implements catalog.Client.
func (f *Fake) FetchInventory(_ context.Context) ([]catalog.InventoryRow, error) {
	f.mu.Lock()
	f.inventoryCall++
	f.mu.Unlock()

	if f.InventoryErr != nil {
		return nil, f.InventoryErr
	}
	return append([]catalog.InventoryRow(nil), f.Inventory...), nil
}

// DetailCalls returns how often the detail of id was fetched.
func (f *Fake) DetailCalls(id catalog.ProductID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls[id]
}

// TotalDetailCalls returns the number of detail fetches across all products.
func (f *Fake) TotalDetailCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.detailCalls {
		total += n
	}
	return total
}

// ListCalls returns how often FetchAllProducts was called.
func (f *Fake) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// SinceCalls returns the horizons FetchProductsUpdatedSince was called with.
func (f *Fake) SinceCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sinceCalls...)
}

// InventoryCalls returns how often FetchInventory was called.
func (f *Fake) InventoryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inventoryCall
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
