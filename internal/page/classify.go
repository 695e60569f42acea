package page

import (
	"net/url"
	"strings"
)

// Type classifies a storefront page by its URL path.
type Type string

const (
	TypeProduct  Type = "product"
	TypeCategory Type = "category"
	TypeCart     Type = "cart"
	TypeCheckout Type = "checkout"
	TypeHome     Type = "home"
	TypeOther    Type = "other"
)

// Classify maps a URL to a page type. First match wins, in this order:
// /products/ -> product, /collections/ -> category, /cart -> cart,
// /checkout -> checkout, root path -> home, anything else -> other.
func Classify(rawURL string) Type {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}

	switch {
	case strings.Contains(path, "/products/"):
		return TypeProduct
	case strings.Contains(path, "/collections/"):
		return TypeCategory
	case strings.Contains(path, "/cart"):
		return TypeCart
	case strings.Contains(path, "/checkout"):
		return TypeCheckout
	case path == "/" || path == "":
		return TypeHome
	default:
		return TypeOther
	}
}
