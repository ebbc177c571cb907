package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<html>
<head><title> Sample Shop </title></head>
<body>
	<div class="product" data-sku="a1">
		<h2>Widget</h2>
		<span class="price">$9.99</span>
	</div>
	<div class="product" data-sku="a2">
		<h2>Gadget</h2>
	</div>
	<a href="/about">About</a>
	<a href="https://other.example.com/page">Other</a>
</body>
</html>`

func TestDocument_TitleAndText(t *testing.T) {
	t.Parallel()

	doc, err := NewDocument([]byte(samplePage), "https://shop.example.com/catalog")
	require.NoError(t, err)

	require.Equal(t, "Sample Shop", doc.Title())
	require.Contains(t, doc.Text(), "Widget")
	require.Contains(t, doc.Text(), "$9.99")
}

func TestDocument_SelectAndFind(t *testing.T) {
	t.Parallel()

	doc, err := NewDocument([]byte(samplePage), "https://shop.example.com/catalog")
	require.NoError(t, err)

	products := doc.Select(".product")
	require.Len(t, products, 2)
	require.Equal(t, "a1", products[0].Attribute("data-sku"))

	price, found := products[0].Find(".price")
	require.True(t, found)
	require.Equal(t, "$9.99", price.Text())

	_, found = products[1].Find(".price")
	require.False(t, found)
}

func TestDocument_ResolveURL(t *testing.T) {
	t.Parallel()

	doc, err := NewDocument([]byte(samplePage), "https://shop.example.com/catalog")
	require.NoError(t, err)

	require.Equal(t, "https://shop.example.com/about", doc.ResolveURL("/about"))
	require.Equal(t, "https://other.example.com/page", doc.ResolveURL("https://other.example.com/page"))

	bare, err := NewDocument([]byte(samplePage), "://not-a-url")
	require.NoError(t, err)
	require.Equal(t, "/about", bare.ResolveURL("/about"))
}
