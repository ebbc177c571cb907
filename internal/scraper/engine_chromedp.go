package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrBrowserDisabled indicates the browser engine has been disabled via
// configuration.
var ErrBrowserDisabled = errors.New("browser engine disabled")

// Scroll behavior for scroll-to-bottom tasks: repeat scroll+measure up to
// maxScrollRounds, stopping early once two consecutive measurements agree.
const (
	maxScrollRounds   = 5
	scrollSettleDelay = time.Second
)

// BrowserEngineConfig tunes the chromedp-backed adapters.
type BrowserEngineConfig struct {
	Concurrency int
	NavTimeout  time.Duration
	DomainQPS   float64
	UserAgent   string
	// Legacy selects the compatibility path: fixed wait-for-body navigation,
	// one scroll pass when requested, no per-selector waits.
	Legacy bool
}

// ChromedpEngine implements EngineAdapter using headless Chrome via chromedp.
// One engine owns a shared browser process; each fetch runs in its own tab.
type ChromedpEngine struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	navTimeout      time.Duration
	domainQPS       float64
	domainLimiters  sync.Map
	userAgent       string
	legacy          bool
}

// NewChromedpEngine creates an adapter using the provided configuration.
func NewChromedpEngine(cfg BrowserEngineConfig, logger *zap.Logger) (*ChromedpEngine, error) {
	if cfg.Concurrency <= 0 {
		return nil, ErrBrowserDisabled
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "webharvest/0.1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		allocatorCancel()
		browserCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpEngine{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.Concurrency),
		navTimeout:      cfg.NavTimeout,
		domainQPS:       cfg.DomainQPS,
		userAgent:       cfg.UserAgent,
		legacy:          cfg.Legacy,
	}, nil
}

// Close tears down the chromedp allocator and browser contexts.
func (e *ChromedpEngine) Close(context.Context) error {
	if e == nil {
		return nil
	}
	e.browserCancel()
	e.allocatorCancel()
	return nil
}

// Fetch navigates to the task's URL in a fresh tab, applies the task's wait
// and scroll hints, and parses the final DOM snapshot into a Document.
func (e *ChromedpEngine) Fetch(ctx context.Context, task Task) (Document, error) {
	if e == nil {
		return nil, ErrBrowserDisabled
	}

	release, err := e.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if waitErr := e.waitDomainBudget(ctx, task.URL); waitErr != nil {
		return nil, fmt.Errorf("render rate limit: %w", waitErr)
	}

	tabCtx, cancelTab := chromedp.NewContext(e.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, e.navTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	e.recordResponse(tabCtx, meta)

	html, err := e.runNavigation(taskCtx, task)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, NewTimeoutError(task.URL, err)
		}
		return nil, classifyTransportError(task.URL, err)
	}

	if code := meta.status(); code != 0 && (code < 200 || code >= 300) {
		return nil, NewHTTPStatusError(task.URL, code)
	}

	return NewDocument([]byte(html), meta.finalURL(task.URL))
}

func (e *ChromedpEngine) runNavigation(ctx context.Context, task Task) (string, error) {
	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(e.userAgent),
		chromedp.Navigate(task.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if len(task.CustomHeaders) > 0 {
		headers := make(network.Headers, len(task.CustomHeaders))
		for name, value := range task.CustomHeaders {
			headers[name] = value
		}
		tasks = append(chromedp.Tasks{network.SetExtraHTTPHeaders(headers)}, tasks...)
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("chromedp navigate: %w", err)
	}

	if task.ScrollToBottom {
		e.scrollToBottom(ctx, task.URL)
	}
	if !e.legacy {
		e.waitForSelectors(ctx, task)
	}

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp snapshot: %w", err)
	}
	return html, nil
}

// scrollToBottom loads lazy content by scrolling until the page height stops
// growing. The legacy path scrolls once, matching its original behavior.
func (e *ChromedpEngine) scrollToBottom(ctx context.Context, url string) {
	rounds := maxScrollRounds
	if e.legacy {
		rounds = 1
	}
	var previous int64 = -1
	for i := 0; i < rounds; i++ {
		var height int64
		err := chromedp.Run(ctx,
			chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight)", nil),
			chromedp.Sleep(scrollSettleDelay),
			chromedp.Evaluate("document.body.scrollHeight", &height),
		)
		if err != nil {
			e.logger.Warn("scroll pass failed", zap.String("url", url), zap.Error(err))
			return
		}
		if height == previous {
			return
		}
		previous = height
	}
}

// waitForSelectors gives each task selector a chance to appear. A missed wait
// logs a warning and continues; partial extraction is acceptable.
func (e *ChromedpEngine) waitForSelectors(ctx context.Context, task Task) {
	if len(task.Selectors) == 0 {
		return
	}
	waitTimeout := task.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	for name, selector := range task.Selectors {
		waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
		cancel()
		if err != nil {
			e.logger.Warn("selector wait timed out",
				zap.String("url", task.URL),
				zap.String("selector_name", name),
				zap.String("selector", selector),
			)
		}
	}
}

func (e *ChromedpEngine) acquireSlot(ctx context.Context) (func(), error) {
	if e.sem == nil {
		return func() {}, nil
	}
	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (e *ChromedpEngine) waitDomainBudget(ctx context.Context, rawURL string) error {
	if e.domainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := e.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(e.domainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

type responseMeta struct {
	mu         sync.Mutex
	statusCode int
	url        string
	recorded   bool
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) status() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCode
}

func (m *responseMeta) finalURL(raw string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.url == "" {
		return raw
	}
	return m.url
}

func (e *ChromedpEngine) recordResponse(tabCtx context.Context, meta *responseMeta) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		meta.mu.Lock()
		defer meta.mu.Unlock()
		if meta.recorded {
			return
		}
		meta.recorded = true
		meta.statusCode = int(resp.Response.Status)
		meta.url = resp.Response.URL
	})
}

// forwardCancel propagates cancellation of the caller's context onto the
// chromedp task context, which descends from the shared browser context
// instead.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
