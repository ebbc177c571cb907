package scraper

import (
	"fmt"

	"go.uber.org/zap"
)

// Registry resolves a Scenario to its extraction strategy. It is built once
// at startup and read-only afterwards, so concurrent workers can resolve
// without locking.
type Registry struct {
	strategies map[Scenario]Strategy
}

// NewRegistry builds the registry covering every supported scenario.
// SocialMedia and RealEstate carry no dedicated default selector table and
// route through the generic strategy.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	custom := &CustomStrategy{logger: logger}
	return &Registry{
		strategies: map[Scenario]Strategy{
			ScenarioEcommerce: &itemListStrategy{
				logger:     logger,
				defaults:   defaultEcommerceSelectors,
				itemKey:    "product",
				listField:  "products",
				countField: "total_items",
				maxItems:   maxProducts,
				fields: []itemField{
					{name: "title", selector: "title"},
					{name: "price", selector: "price"},
					{name: "image", selector: "image", attribute: "src"},
				},
			},
			ScenarioNews: &itemListStrategy{
				logger:     logger,
				defaults:   defaultNewsSelectors,
				itemKey:    "article",
				listField:  "articles",
				countField: "total_articles",
				maxItems:   maxArticles,
				fields: []itemField{
					{name: "headline", selector: "headline"},
					{name: "summary", selector: "summary"},
					{name: "author", selector: "author"},
					{name: "date", selector: "date", attribute: "datetime"},
				},
			},
			ScenarioFinancial: &itemListStrategy{
				logger:    logger,
				defaults:  defaultFinancialSelectors,
				itemKey:   "stock",
				listField: "stocks",
				maxItems:  maxStockRows,
				fields: []itemField{
					{name: "symbol", selector: "symbol"},
					{name: "price", selector: "price"},
					{name: "change", selector: "change"},
				},
			},
			ScenarioJobListings: &itemListStrategy{
				logger:     logger,
				defaults:   defaultJobSelectors,
				itemKey:    "job",
				listField:  "jobs",
				countField: "total_jobs",
				maxItems:   maxJobs,
				fields: []itemField{
					{name: "title", selector: "title"},
					{name: "company", selector: "company"},
					{name: "location", selector: "location"},
					{name: "salary", selector: "salary"},
				},
			},
			ScenarioSocialMedia: custom,
			ScenarioRealEstate:  custom,
			ScenarioCustom:      custom,
		},
	}
}

// Resolve returns the strategy for the scenario.
func (r *Registry) Resolve(s Scenario) (Strategy, error) {
	strategy, ok := r.strategies[s]
	if !ok {
		return nil, fmt.Errorf("resolve scenario %q: %w", s, ErrUnsupportedRoute)
	}
	return strategy, nil
}

// itemField maps one output field to a selector-table key. When attribute is
// empty the element text is used.
type itemField struct {
	name      string
	selector  string
	attribute string
}

// itemListStrategy is the shared shape of the scenario extractors: find the
// item elements, pull a fixed set of fields from each, cap the item count.
// A field without a match yields the "N/A" sentinel; an item whose fields all
// miss still produces an all-sentinel row and counts toward the total.
type itemListStrategy struct {
	logger     *zap.Logger
	defaults   map[string]string
	itemKey    string
	listField  string
	countField string
	maxItems   int
	fields     []itemField
}

// Extract walks the matched items and builds the field mapping. Zero matched
// items yields an empty list, not a failure.
func (s *itemListStrategy) Extract(doc Document, task Task) (map[string]any, error) {
	table := selectorTable(task, s.defaults)
	itemSelector, ok := table[s.itemKey]
	if !ok {
		return nil, fmt.Errorf("selector table missing %q entry", s.itemKey)
	}

	items := doc.Select(itemSelector)
	if len(items) > s.maxItems {
		items = items[:s.maxItems]
	}

	list := make([]map[string]any, 0, len(items))
	for _, item := range items {
		list = append(list, s.extractItem(item, table))
	}

	data := map[string]any{s.listField: list}
	if s.countField != "" {
		data[s.countField] = len(list)
	}
	return data, nil
}

func (s *itemListStrategy) extractItem(item Element, table map[string]string) map[string]any {
	row := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		selector, ok := table[f.selector]
		if !ok {
			row[f.name] = notAvailable
			continue
		}
		elem, found := item.Find(selector)
		if !found {
			row[f.name] = notAvailable
			continue
		}
		value := elem.Text()
		if f.attribute != "" {
			value = elem.Attribute(f.attribute)
		}
		if value == "" {
			row[f.name] = notAvailable
			continue
		}
		row[f.name] = value
	}
	return row
}
