package page

import "strings"

// Element describes the target of a page interaction. It carries just enough
// of the DOM node for selector matching, so the matching logic needs no
// document tree.
type Element struct {
	Tag     string            `json:"tag"`
	ID      string            `json:"id,omitempty"`
	Classes []string          `json:"classes,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Text    string            `json:"text,omitempty"`
}

// hasClass matches exactly: class names are case-sensitive.
func (e Element) hasClass(name string) bool {
	for _, c := range e.Classes {
		if c == name {
			return true
		}
	}
	return false
}

func (e Element) attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

var addToCartClasses = []string{
	"add-to-cart",
	"add_to_cart",
	"product-form__cart-submit",
	"btn--add-to-cart",
}

// IsAddToCart reports whether the element matches the storefront's
// add-to-cart selector set.
func IsAddToCart(e Element) bool {
	tag := strings.ToLower(e.Tag)

	if _, ok := e.attr("data-add-to-cart"); ok {
		return true
	}
	if strings.HasPrefix(e.ID, "AddToCart") {
		return true
	}
	for _, class := range addToCartClasses {
		if e.hasClass(class) {
			return true
		}
	}
	if tag == "button" || tag == "input" {
		if name, ok := e.attr("name"); ok && name == "add" {
			return true
		}
	}
	return false
}

// IsInteractive reports whether the element is a generic interactive target
// worth a click event. An element may match both this and IsAddToCart.
func IsInteractive(e Element) bool {
	switch strings.ToLower(e.Tag) {
	case "a", "button", "select", "summary":
		return true
	case "input":
		if t, ok := e.attr("type"); ok {
			switch strings.ToLower(t) {
			case "button", "submit", "checkbox", "radio":
				return true
			}
		}
		return false
	}
	if role, ok := e.attr("role"); ok && strings.EqualFold(role, "button") {
		return true
	}
	if _, ok := e.attr("onclick"); ok {
		return true
	}
	return false
}
