package admin

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidate_Messages(t *testing.T) {
	in := ProductInput{
		Name:        strings.Repeat("é", MaxNameLength+1),
		Price:       decimal.RequireFromString("-1"),
		Stock:       -3,
		ImageURL:    "ftp://example.com/a.png",
		Description: strings.Repeat("d", MaxDescriptionLength+1),
	}

	errs := in.Validate(nil)

	assert.Equal(t, ValidationErrors{
		"name":        "Name must be at most 120 characters.",
		"category":    "Category is required.",
		"price":       "Price must be between 0 and 999999.",
		"stock":       "Stock cannot be negative.",
		"image_url":   "Image URL must be an absolute http(s) URL.",
		"description": "Description must be at most 1000 characters.",
	}, errs)
}

func TestValidate_NameLengthCountsCharacters(t *testing.T) {
	in := validInput()
	in.Name = strings.Repeat("é", MaxNameLength)

	assert.Empty(t, in.Validate(nil))
}

func TestValidate_PriceDecimalPlaces(t *testing.T) {
	tests := []struct {
		price string
		ok    bool
	}{
		{"0", true},
		{"19.5", true},
		{"19.50", true},
		{"19.500", true},
		{"999999", true},
		{"1.005", false},
		{"0.001", false},
		{"999999.01", false},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			in := validInput()
			in.Price = decimal.RequireFromString(tt.price)

			errs := in.Validate(nil)
			if tt.ok {
				assert.Empty(t, errs)
				return
			}
			assert.Contains(t, errs, "price")
		})
	}

	in := validInput()
	in.Price = decimal.RequireFromString("1.005")
	assert.Equal(t, "Price can have at most 2 decimal places.", in.Validate(nil)["price"])
}

func TestValidate_LocalImagePath(t *testing.T) {
	in := validInput()
	in.ImageURL = "/uploads/products/abc.png"

	assert.Empty(t, in.Validate(nil))
}

func TestValidate_CallerErrorsTakePrecedence(t *testing.T) {
	in := validInput()
	in.Name = ""

	errs := in.Validate(ValidationErrors{"price": "Price must be a number."})

	assert.Equal(t, "Price must be a number.", errs["price"])
	assert.Equal(t, "Name is required.", errs["name"])
}
