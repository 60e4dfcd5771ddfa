package admin

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/trinislearning/hit339/internal/domain"
)

const (
	MaxNameLength        = 120
	MaxDescriptionLength = 1000
	PriceDecimalPlaces   = 2
)

var maxPrice = decimal.NewFromInt(999999)

// ValidationErrors maps a form field to the message shown next to it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// ProductInput is the editable part of a product as submitted by the owner.
type ProductInput struct {
	Name        string          `form:"name" validate:"required,max=120"`
	Category    string          `form:"category" validate:"required"`
	Price       decimal.Decimal `form:"price" validate:"price_range,price_scale"`
	Stock       int             `form:"stock" validate:"gte=0"`
	ImageURL    string          `form:"image_url" validate:"omitempty,image_url"`
	Description string          `form:"description" validate:"max=1000"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})

	// decimals are validated through their string form
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	mustRegister(v, "price_range", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative() && !d.GreaterThan(maxPrice)
	})
	mustRegister(v, "price_scale", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.Equal(d.Truncate(PriceDecimalPlaces))
	})
	mustRegister(v, "image_url", func(fl validator.FieldLevel) bool {
		return validImageURL(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// fieldMessages holds the text shown for each failed field/tag pair.
var fieldMessages = map[string]string{
	"name.required":       "Name is required.",
	"name.max":            fmt.Sprintf("Name must be at most %d characters.", MaxNameLength),
	"category.required":   "Category is required.",
	"price.price_range":   "Price must be between 0 and 999999.",
	"price.price_scale":   fmt.Sprintf("Price can have at most %d decimal places.", PriceDecimalPlaces),
	"stock.gte":           "Stock cannot be negative.",
	"image_url.image_url": "Image URL must be an absolute http(s) URL.",
	"description.max":     fmt.Sprintf("Description must be at most %d characters.", MaxDescriptionLength),
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Description = strings.TrimSpace(in.Description)
}

// Validate reports every field problem at once. errs may already hold parse
// failures from the caller; those take precedence.
func (in ProductInput) Validate(errs ValidationErrors) ValidationErrors {
	if errs == nil {
		errs = ValidationErrors{}
	}

	err := validate.Struct(in)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("form", err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s is invalid.", fe.Field())
		}
		errs.Add(fe.Field(), msg)
	}
	return errs
}

func (in ProductInput) apply(p *domain.Product) {
	p.Name = in.Name
	p.Category = in.Category
	p.Price = in.Price
	p.Stock = in.Stock
	p.Description = in.Description
}

func validImageURL(raw string) bool {
	if strings.HasPrefix(raw, localPrefix) {
		return true
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
