// Package http exposes the ledger service as a JSON API.
//
// This file holds the helpers that turn request bodies, path and query
// parameters into domain values.

package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budget/internal/core"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps request bodies; ledger payloads are tiny.
const maxBodyBytes = 64 << 10

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Money parses a required positive amount.
func (p *RequestBodyParser) Money(key string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(p.Get(key))
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: key, Err: err}
	}
	return core.Money{Cents: cents}, nil
}

// OptionalMoney parses a non-negative amount, zero when absent.
func (p *RequestBodyParser) OptionalMoney(key string) (core.Money, error) {
	v := p.Get(key)
	if v == "" {
		return core.Money{}, nil
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: key, Err: err}
	}
	return m, nil
}

// Date parses a YYYY-MM-DD value, returning the zero date when absent.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	v := p.Get(key)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(key, "expected YYYY-MM-DD, got %q", v)
	}
	return d, nil
}

// Int64 parses an optional integer, zero when absent.
func (p *RequestBodyParser) Int64(key string) (int64, error) {
	return parseOptionalInt(key, p.Get(key))
}

// Bool parses an optional boolean, false when absent.
func (p *RequestBodyParser) Bool(key string) (bool, error) {
	v := p.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, core.Invalid(key, "expected true or false, got %q", v)
	}
	return b, nil
}

// SaveRule parses "0.2", "20%" or "50".
func (p *RequestBodyParser) SaveRule(key string) (core.SaveRule, error) {
	r, err := core.ParseSaveRule(p.Get(key))
	if err != nil {
		return core.SaveRule{}, &core.ValidationError{Field: key, Err: err}
	}
	return r, nil
}

// parseBody reads and parses the request body, mapping malformed input to
// a validation error.
func parseBody(r *http.Request) (*RequestBodyParser, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, core.Invalid("body", "malformed request body: %v", err)
	}
	return p, nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	v := chi.URLParam(r, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(name, "expected a positive integer, got %q", v)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string) (int64, error) {
	return parseOptionalInt(key, strings.TrimSpace(r.URL.Query().Get(key)))
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, key string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.Invalid(key, "expected YYYY-MM-DD, got %q", v)
	}
	return d, nil
}

// queryBool reports whether the query parameter is set to a true value.
func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// confirmed reports whether a destructive request carries ?confirm=true.
func confirmed(r *http.Request) bool {
	return queryBool(r, "confirm")
}

func parseOptionalInt(key, v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, core.Invalid(key, "expected a non-negative integer, got %q", v)
	}
	return n, nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
