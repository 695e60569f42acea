package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAddToCart(t *testing.T) {
	tests := []struct {
		name string
		el   Element
		want bool
	}{
		{"named add button", Element{Tag: "button", Attrs: map[string]string{"name": "add"}}, true},
		{"add-to-cart class", Element{Tag: "button", Classes: []string{"btn", "add-to-cart"}}, true},
		{"underscore class", Element{Tag: "a", Classes: []string{"add_to_cart"}}, true},
		{"shopify submit class", Element{Tag: "button", Classes: []string{"product-form__cart-submit"}}, true},
		{"data attribute", Element{Tag: "div", Attrs: map[string]string{"data-add-to-cart": ""}}, true},
		{"id prefix", Element{Tag: "button", ID: "AddToCart-product-form"}, true},
		{"named input", Element{Tag: "input", Attrs: map[string]string{"name": "add", "type": "submit"}}, true},
		{"uppercased class", Element{Tag: "button", Classes: []string{"Add-To-Cart"}}, false},
		{"plain button", Element{Tag: "button", Text: "Subscribe"}, false},
		{"plain link", Element{Tag: "a"}, false},
		{"named add div", Element{Tag: "div", Attrs: map[string]string{"name": "add"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAddToCart(tt.el))
		})
	}
}

func TestIsInteractive(t *testing.T) {
	tests := []struct {
		name string
		el   Element
		want bool
	}{
		{"link", Element{Tag: "a"}, true},
		{"button", Element{Tag: "BUTTON"}, true},
		{"select", Element{Tag: "select"}, true},
		{"submit input", Element{Tag: "input", Attrs: map[string]string{"type": "submit"}}, true},
		{"text input", Element{Tag: "input", Attrs: map[string]string{"type": "text"}}, false},
		{"role button", Element{Tag: "div", Attrs: map[string]string{"role": "button"}}, true},
		{"onclick handler", Element{Tag: "span", Attrs: map[string]string{"onclick": "go()"}}, true},
		{"plain div", Element{Tag: "div"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInteractive(tt.el))
		})
	}
}

func TestAddToCartButtonIsAlsoInteractive(t *testing.T) {
	// Both selector sets may match the same click target.
	el := Element{Tag: "button", Classes: []string{"add-to-cart"}}
	assert.True(t, IsAddToCart(el))
	assert.True(t, IsInteractive(el))
}
