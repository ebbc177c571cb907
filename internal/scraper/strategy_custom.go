package scraper

import (
	"go.uber.org/zap"
)

// CustomStrategy handles tasks without a scenario-specific extractor. With no
// selector table it captures the page title, a truncated text body and the
// outbound links; with a table it collects matching element texts per named
// selector, plus links and images when the task asks for them.
type CustomStrategy struct {
	logger *zap.Logger
}

// NewCustomStrategy builds the generic extractor.
func NewCustomStrategy(logger *zap.Logger) *CustomStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomStrategy{logger: logger}
}

// Extract never fails the task: per-selector misses produce empty lists.
func (s *CustomStrategy) Extract(doc Document, task Task) (map[string]any, error) {
	if len(task.Selectors) == 0 {
		return s.extractGeneric(doc, task), nil
	}

	data := make(map[string]any, len(task.Selectors))
	for key, selector := range task.Selectors {
		elems := doc.Select(selector)
		if len(elems) > maxCustomElements {
			elems = elems[:maxCustomElements]
		}
		values := make([]string, 0, len(elems))
		for _, elem := range elems {
			values = append(values, elem.Text())
		}
		data[key] = values
	}
	if task.ExtractLinks {
		data["links"] = collectLinks(doc)
	}
	if task.ExtractImages {
		data["images"] = collectImages(doc)
	}
	return data, nil
}

func (s *CustomStrategy) extractGeneric(doc Document, task Task) map[string]any {
	title := doc.Title()
	if title == "" {
		title = notAvailable
	}

	text := doc.Text()
	if runes := []rune(text); len(runes) > maxTextContentSize {
		text = string(runes[:maxTextContentSize])
	}

	data := map[string]any{
		"title":        title,
		"text_content": text,
		"links":        collectLinks(doc),
	}

	if task.ExtractImages {
		data["images"] = collectImages(doc)
	}

	return data
}

func collectLinks(doc Document) []string {
	links := make([]string, 0, maxLinks)
	for _, anchor := range doc.Select("a[href]") {
		if len(links) >= maxLinks {
			break
		}
		href := anchor.Attribute("href")
		if href == "" {
			continue
		}
		links = append(links, doc.ResolveURL(href))
	}
	return links
}

func collectImages(doc Document) []string {
	images := make([]string, 0, maxImages)
	for _, img := range doc.Select("img[src]") {
		if len(images) >= maxImages {
			break
		}
		if src := img.Attribute("src"); src != "" {
			images = append(images, doc.ResolveURL(src))
		}
	}
	return images
}
