package conflicts

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/brightsync/pkg/cache"
	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/filter"
	"github.com/agentstation/brightsync/pkg/logging"
)

// validSKU matches SKUs made only of letters, digits, underscore, hyphen,
// dot, slash and space.
var validSKU = regexp.MustCompile(`^[A-Za-z0-9_\-./ ]+$`)

// ValidSKU reports whether sku contains only allowed characters.
func ValidSKU(sku string) bool {
	return validSKU.MatchString(sku)
}

// Scanner scans one store's catalog for conflicts.
type Scanner struct {
	client catalog.Client
	store  *config.Store
	filter *filter.Filter
	cache  cache.Snapshot
	now    func() utc.Time
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithClock overrides the scanner's clock.
func WithClock(now func() utc.Time) ScannerOption {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCache supplies the change-detection snapshot used to skip deep checks.
func WithCache(snap cache.Snapshot) ScannerOption {
	return func(s *Scanner) {
		s.cache = snap
	}
}

// NewScanner creates a Scanner.
func NewScanner(client catalog.Client, store *config.Store, f *filter.Filter, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		client: client,
		store:  store,
		filter: f,
		cache:  cache.Snapshot{},
		now:    utc.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of a scan.
type Result struct {
	Rows []Row
	// Flag is nil when the scan found no conflicts.
	Flag *FlagEntry

	Listed       int
	Considered   int
	DeepChecked  int
	DeepSkipped  int
	DetailErrors []error
	CheckedAt    utc.Time
}

// Scan lists the catalog and returns the full conflict row set and flag entry.
// Listing failures are returned; detail failures are recorded in the result
// and the product's deep checks are skipped.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	log := logging.FromContext(ctx)
	now := s.now()

	products, err := s.client.FetchAllProducts(ctx)
	if err != nil {
		return nil, err
	}
	inventory, err := s.client.FetchInventory(ctx)
	if err != nil {
		return nil, err
	}
	invIndex := catalog.IndexInventory(inventory)

	res := &Result{Listed: len(products), CheckedAt: now}
	horizon := now.Time.AddDate(0, 0, -s.store.InclusionDays)

	var considered []catalog.Product
	for _, p := range products {
		if !s.filter.ShouldInclude(p.TrimmedSKU(), p.VendorNames()) {
			continue
		}
		if !p.IsActive() && s.stale(p, horizon) {
			continue
		}
		considered = append(considered, p)
	}
	res.Considered = len(considered)

	rows := duplicateRows(considered)
	rows = append(rows, badCharRows(considered)...)

	vendorSensitive := s.store.FilterMode.UsesVendors()
	for _, p := range considered {
		if s.cache.Unchanged(p, vendorSensitive) {
			res.DeepSkipped++
			continue
		}
		deep, err := s.deepCheck(ctx, p, invIndex)
		if err != nil {
			log.Warn().Err(err).Str("product_id", p.ID.String()).Str("sku", p.SKU).Msg("Skipping deep checks")
			res.DetailErrors = append(res.DetailErrors, err)
			continue
		}
		res.DeepChecked++
		rows = append(rows, deep...)
	}

	SortRows(rows)
	res.Rows = rows
	res.Flag = NewFlagEntry(rows, now.Time.UTC().Format(time.RFC3339))

	log.Info().
		Int("listed", res.Listed).
		Int("considered", res.Considered).
		Int("deep_checked", res.DeepChecked).
		Int("deep_skipped", res.DeepSkipped).
		Int("conflicts", len(rows)).
		Msg("Conflict scan complete")

	return res, nil
}

// stale reports whether p was last updated before horizon. Unparsable
// timestamps are never stale.
func (s *Scanner) stale(p catalog.Product, horizon time.Time) bool {
	ts, ok := catalog.ParseTimestamp(p.UpdatedAt)
	if !ok {
		return false
	}
	return ts.Time.Before(horizon)
}

func (s *Scanner) deepCheck(ctx context.Context, p catalog.Product, inv catalog.InventoryIndex) ([]Row, error) {
	detail, err := s.client.FetchProductDetail(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, opt := range detail.Options {
		for _, sub := range opt.SubOptions {
			if strings.TrimSpace(sub.SubSKU) != "" {
				continue
			}
			rows = append(rows, Row{
				Kind:      KindMissingSubSKU,
				SKU:       p.TrimmedSKU(),
				ProductID: p.ID,
				Name:      p.Name,
				Detail:    fmt.Sprintf("%s: %s", opt.Name, sub.Name),
			})
		}
	}

	if !inv.Has(p.ID) {
		if reasons := s.filter.Reasons(p.TrimmedSKU(), p.VendorNames()); len(reasons) > 0 {
			rows = append(rows, Row{
				Kind:      KindMissingInventory,
				SKU:       p.TrimmedSKU(),
				ProductID: p.ID,
				Name:      p.Name,
				Detail:    strings.Join(reasons, "; "),
			})
		}
	}
	return rows, nil
}

// duplicateRows reports every product whose non-empty SKU is shared with
// another product id.
func duplicateRows(products []catalog.Product) []Row {
	owners := make(map[string][]catalog.Product)
	for _, p := range products {
		sku := p.TrimmedSKU()
		if sku == "" {
			continue
		}
		owners[sku] = append(owners[sku], p)
	}

	var rows []Row
	for sku, group := range owners {
		ids := make(map[catalog.ProductID]struct{}, len(group))
		for _, p := range group {
			ids[p.ID] = struct{}{}
		}
		if len(ids) < 2 {
			continue
		}
		seen := make(map[catalog.ProductID]struct{}, len(group))
		for _, p := range group {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			rows = append(rows, Row{
				Kind:      KindDuplicate,
				SKU:       sku,
				ProductID: p.ID,
				Name:      p.Name,
				Detail:    fmt.Sprintf("shared by %d products", len(ids)),
			})
		}
	}
	return rows
}

// badCharRows reports every product whose SKU contains a disallowed character.
func badCharRows(products []catalog.Product) []Row {
	var rows []Row
	for _, p := range products {
		sku := p.TrimmedSKU()
		if sku == "" || ValidSKU(sku) {
			continue
		}
		rows = append(rows, Row{
			Kind:      KindBadSKUChars,
			SKU:       sku,
			ProductID: p.ID,
			Name:      p.Name,
			Detail:    "invalid characters: " + invalidChars(sku),
		})
	}
	return rows
}

func invalidChars(sku string) string {
	var b strings.Builder
	seen := make(map[rune]bool)
	for _, r := range sku {
		if validSKU.MatchString(string(r)) || seen[r] {
			continue
		}
		seen[r] = true
		b.WriteRune(r)
	}
	return b.String()
}
