package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// HTTPEngineConfig tunes the plain-HTTP adapter.
type HTTPEngineConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxParallel    int
}

// CollyEngine implements EngineAdapter over a plain HTTP request using the
// Colly collector. It performs a single request with the task's custom
// headers and surfaces non-2xx statuses immediately; there are no DOM wait
// semantics.
type CollyEngine struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyEngine constructs a configured Colly-based adapter.
func NewCollyEngine(cfg HTTPEngineConfig, logger *zap.Logger) (*CollyEngine, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "webharvest/0.1"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 8
	}

	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       cfg.MaxParallel * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &CollyEngine{
		baseCollector: base,
		logger:        logger,
	}, nil
}

// Fetch retrieves the task's URL and parses the body into a Document.
func (e *CollyEngine) Fetch(ctx context.Context, task Task) (Document, error) {
	collector := e.baseCollector.Clone()
	resultCh := make(chan collyResult, 1)
	var once sync.Once
	send := func(res collyResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnRequest(func(r *colly.Request) {
		for name, value := range task.CustomHeaders {
			r.Headers.Set(name, value)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			send(collyResult{err: NewHTTPStatusError(task.URL, r.StatusCode)})
			return
		}
		send(collyResult{body: append([]byte{}, r.Body...), finalURL: r.Request.URL.String()})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			send(collyResult{err: NewHTTPStatusError(task.URL, r.StatusCode)})
			return
		}
		send(collyResult{err: classifyTransportError(task.URL, err)})
	})

	if err := collector.Visit(task.URL); err != nil {
		return nil, classifyTransportError(task.URL, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if res.err != nil {
			return nil, res.err
		}
		return NewDocument(res.body, res.finalURL)
	default:
		return nil, &FetchError{Kind: FetchOther, URL: task.URL, Err: errors.New("fetch produced no result")}
	}
}

type collyResult struct {
	body     []byte
	finalURL string
	err      error
}

// classifyTransportError maps transport failures onto the fetch taxonomy so
// the retry policy can distinguish transient from permanent causes.
func classifyTransportError(url string, err error) *FetchError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(url, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(url, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewConnectionError(url, err)
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") {
		return NewConnectionError(url, err)
	}
	return &FetchError{Kind: FetchOther, URL: url, Err: err}
}
