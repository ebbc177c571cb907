package scraper

// Default selector tables per scenario. These are configuration data tuned
// against common page layouts; tasks override them by supplying their own
// table.

var defaultEcommerceSelectors = map[string]string{
	"product": ".product, .product-item, [data-product-id]",
	"title":   "h2, h3, .product-title, .product-name",
	"price":   ".price, .product-price, [class*='price']",
	"image":   "img",
}

var defaultNewsSelectors = map[string]string{
	"article":  "article, .article, .post, [class*='article']",
	"headline": "h1, h2, .headline, .title",
	"summary":  "p, .summary, .excerpt",
	"author":   ".author, [class*='author']",
	"date":     "time, .date, [datetime]",
}

var defaultFinancialSelectors = map[string]string{
	"stock":  "[data-symbol], .stock-row, tr",
	"symbol": ".symbol, [data-symbol]",
	"price":  ".price, [data-field='regularMarketPrice']",
	"change": ".change, [data-field='regularMarketChange']",
}

var defaultJobSelectors = map[string]string{
	"job":      ".job, .job-card, [data-job-id]",
	"title":    "h2, h3, .job-title",
	"company":  ".company, .company-name",
	"location": ".location, .job-location",
	"salary":   ".salary, [class*='salary']",
}

// Per-scenario item caps bounding output size.
const (
	maxProducts        = 50
	maxArticles        = 30
	maxStockRows       = 100
	maxJobs            = 50
	maxLinks           = 50
	maxImages          = 50
	maxCustomElements  = 20
	maxTextContentSize = 5000
)

// notAvailable is the sentinel recorded for a missing optional field.
const notAvailable = "N/A"

// selectorTable returns the task's selector table, falling back to the
// provided default when the task supplies none.
func selectorTable(task Task, defaults map[string]string) map[string]string {
	if len(task.Selectors) > 0 {
		return task.Selectors
	}
	return defaults
}
