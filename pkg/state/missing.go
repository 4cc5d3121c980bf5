package state

import (
	"bytes"
	"context"
	"encoding/csv"
	"slices"
	"strings"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/errors"
)

// MissingHeader is the first line of a store's missing-products CSV.
var MissingHeader = []string{"SKU", "Name", "Image URL", "Order Tags"}

// MissingAllHeader is the first line of the combined missing-products CSV.
var MissingAllHeader = append([]string{"Store"}, MissingHeader...)

// missingOrderTag fills the Order Tags column operators filter on.
const missingOrderTag = "inventory"

// MissingAllPath is the combined missing-products CSV over every store.
var MissingAllPath = docstore.Join(constants.MissingFolder, "missing_products_all.csv")

// MissingPath returns the document path of a store's missing-products CSV.
func MissingPath(store string) string {
	return docstore.Join(constants.MissingFolder, "missing_products_"+strings.ToLower(store)+".csv")
}

// EncodeMissing renders recs as the operator-readable CSV of one store.
func EncodeMissing(recs []Record) ([]byte, error) {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, missingRow(rec))
	}
	return encodeCSV(MissingHeader, rows)
}

// EncodeMissingAll renders every store's records as one CSV, stores in
// name order.
func EncodeMissingAll(byStore map[string][]Record) ([]byte, error) {
	stores := make([]string, 0, len(byStore))
	for store := range byStore {
		stores = append(stores, store)
	}
	slices.Sort(stores)

	var rows [][]string
	for _, store := range stores {
		for _, rec := range byStore[store] {
			rows = append(rows, append([]string{store}, missingRow(rec)...))
		}
	}
	return encodeCSV(MissingAllHeader, rows)
}

func missingRow(rec Record) []string {
	return []string{rec.SKU, rec.Name, rec.ImageURL, missingOrderTag}
}

func encodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, errors.WrapIO("write", "csv", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, errors.WrapIO("write", "csv", err)
	}
	return buf.Bytes(), nil
}

// MissingReports writes the CSV companions of the retry queues.
type MissingReports struct {
	docs docstore.Store
}

// Write replaces the store's CSV, deleting it when recs is empty.
func (m *MissingReports) Write(ctx context.Context, store string, recs []Record) error {
	if len(recs) == 0 {
		return m.docs.Delete(ctx, MissingPath(store))
	}
	data, err := EncodeMissing(recs)
	if err != nil {
		return err
	}
	return m.docs.Upload(ctx, MissingPath(store), data)
}

// Rebuild replaces the combined CSV, deleting it when no store has records.
func (m *MissingReports) Rebuild(ctx context.Context, byStore map[string][]Record) error {
	n := 0
	for _, recs := range byStore {
		n += len(recs)
	}
	if n == 0 {
		return m.docs.Delete(ctx, MissingAllPath)
	}
	data, err := EncodeMissingAll(byStore)
	if err != nil {
		return err
	}
	return m.docs.Upload(ctx, MissingAllPath, data)
}
