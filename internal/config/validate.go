package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/y0f/graphql-check/internal/graphql"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("graphql_endpoint", validateEndpoint)
	_ = v.RegisterValidation("auth_header", validateAuthHeader)
	_ = v.RegisterValidation("proxy_url", validateProxyURL)
	return v
}

func validateEndpoint(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateAuthHeader(fl validator.FieldLevel) bool {
	_, err := graphql.ParseHeader(fl.Field().String())
	return err == nil
}

func validateProxyURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
		return true
	}
	return false
}

func validateStruct(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		errs = append(errs, &FieldError{Field: field, Msg: fieldMessage(field, fe)})
	}
	return errors.Join(errs...)
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if field == "target.endpoint" {
			return "input `endpoint` is required"
		}
		return fmt.Sprintf("%s is required", field)
	case "graphql_endpoint":
		return fmt.Sprintf("%s must be an absolute http(s) URL", field)
	case "auth_header":
		return graphql.ErrBadHeader.Error()
	case "proxy_url":
		return fmt.Sprintf("%s must be an http, https or socks5 URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be positive", field)
	case "gte":
		return fmt.Sprintf("%s must not be negative", field)
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
