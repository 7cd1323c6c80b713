package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ricky22407-lang/Buyer-1/config"
	"github.com/ricky22407-lang/Buyer-1/model"
)

// Reconciler decides which extracted candidates enter the ledger. It is the
// only path that creates orders and products from analysis results; manual
// entry goes straight to the store and bypasses it.
type Reconciler struct {
	store         *LedgerStore
	matcher       NameMatcher
	orderWindow   time.Duration
	productWindow time.Duration

	// seams for tests
	now   func() time.Time
	newID func() string
}

// IngestSummary reports what one analysis result did to the ledger.
type IngestSummary struct {
	OrdersAdded    int `json:"orders_added"`
	OrdersDropped  int `json:"orders_dropped"`
	ProductsAdded  int `json:"products_added"`
	ProductsMerged int `json:"products_merged"`
	Interactions   int `json:"interactions"`
}

func NewReconciler(store *LedgerStore, cfg *config.LedgerConfig) *Reconciler {
	return &Reconciler{
		store:         store,
		matcher:       DefaultMatcher(),
		orderWindow:   cfg.OrderWindow(),
		productWindow: cfg.ProductWindow(),
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
	}
}

// SetMatcher swaps the product name comparison strategy.
func (r *Reconciler) SetMatcher(m NameMatcher) {
	r.matcher = m
}

// Ingest merges one analysis result into the ledger. Candidates from the
// monitor channel are deduplicated against recent ledger state; manual and
// single-image submissions were explicitly triggered by an operator and are
// always accepted in full.
func (r *Reconciler) Ingest(ctx context.Context, result model.AnalysisResult, source model.OrderSource, group string) IngestSummary {
	var sum IngestSummary
	now := r.now()

	for _, c := range result.Orders {
		if source == model.SourceMonitor && r.isDuplicateOrder(c, group, now) {
			sum.OrdersDropped++
			slog.Debug("dropping duplicate order",
				"buyer", c.BuyerName,
				"item", c.ItemName,
				"group", group,
			)
			continue
		}
		order := model.NewOrder(r.newID(), c, source, group, now)
		r.store.UpsertOrder(ctx, order)
		sum.OrdersAdded++
	}

	for _, c := range result.Products {
		if existing := r.findMergeTarget(c, now); existing != nil {
			r.store.UpsertProduct(ctx, mergeProduct(existing, c))
			sum.ProductsMerged++
			continue
		}
		r.store.UpsertProduct(ctx, model.NewProduct(r.newID(), c, now))
		sum.ProductsAdded++
	}

	for _, c := range result.Interactions {
		r.store.AddInteraction(&model.Interaction{
			ID:             r.newID(),
			BuyerName:      c.BuyerName,
			Question:       c.Question,
			SuggestedReply: c.SuggestedReply,
			CreatedAt:      now,
		})
		sum.Interactions++
	}

	if sum.OrdersAdded > 0 || sum.ProductsAdded > 0 || sum.ProductsMerged > 0 {
		slog.Info("analysis result ingested",
			"source", source,
			"group", group,
			"orders_added", sum.OrdersAdded,
			"orders_dropped", sum.OrdersDropped,
			"products_added", sum.ProductsAdded,
			"products_merged", sum.ProductsMerged,
		)
	}

	return sum
}

// isDuplicateOrder reports whether an identical (buyer, item, group) order
// already landed within the recency window. A genuine re-order inside the
// window is indistinguishable from a duplicate screenshot and is dropped;
// idempotence of the polling loop wins over completeness here.
func (r *Reconciler) isDuplicateOrder(c model.CandidateOrder, group string, now time.Time) bool {
	cutoff := now.Add(-r.orderWindow)
	for _, existing := range r.store.Orders() {
		if existing.BuyerName == c.BuyerName &&
			existing.ItemName == c.ItemName &&
			existing.GroupName == group &&
			existing.CreatedAt.After(cutoff) {
			return true
		}
	}
	return false
}

// findMergeTarget locates a recent product this candidate is a fragment of.
func (r *Reconciler) findMergeTarget(c model.CandidateProduct, now time.Time) *model.Product {
	cutoff := now.Add(-r.productWindow)
	for _, existing := range r.store.Products() {
		if existing.CreatedAt.After(cutoff) && r.matcher.Matches(existing.Name, c.Name) {
			return existing
		}
	}
	return nil
}

// mergeProduct folds a later fragment into an existing listing. A fragment
// only overwrites what it actually carries; identity, capture time and the
// operator's purchasing fields are never touched.
func mergeProduct(existing *model.Product, c model.CandidateProduct) *model.Product {
	merged := *existing
	if c.Price != 0 {
		merged.Price = c.Price
	}
	if c.Type != "" {
		merged.Type = c.Type
	}
	if len(c.Specs) > len(existing.Specs) {
		merged.Specs = c.Specs
	}
	if c.Description != "" {
		merged.Description = c.Description
	}
	if c.ClosingTime != "" {
		merged.ClosingTime = c.ClosingTime
	}
	if len(c.BulkRules) > len(existing.BulkRules) {
		merged.BulkRules = c.BulkRules
	}
	return &merged
}
