// Package validate checks request bodies against the JSON schemas embedded under
// schemas/. Handlers validate the raw body first, then decode into their typed
// request struct.
package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names.
const (
	ContractCreate  = "contract_create"
	ContractUpdate  = "contract_update"
	Signature       = "signature"
	Transition      = "transition"
	Resignation     = "resignation"
	Consume         = "consume"
	RefundRequest   = "refund_request"
	Profile         = "profile"
	DuplicateLookup = "duplicate_lookup"
	PaymentCreate   = "payment_create"
	PaymentWebhook  = "payment_webhook"
)

// MaxBodyBytes bounds every validated request body.
const MaxBodyBytes = 1 << 20

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles every embedded schema. Format assertions (date, etc.) are enabled.
func New() (*Validator, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if err := c.AddResource(schemaURL(name), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %q: %w", name, err)
		}
		names = append(names, name)
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		s, err := c.Compile(schemaURL(name))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// MustNew panics if the embedded schemas do not compile.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

func schemaURL(name string) string {
	return "https://schemas.contracts.internal/" + name + ".json"
}

// Validate checks raw JSON against the named schema.
func (v *Validator) Validate(name string, raw []byte) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apperr.Validation("invalid JSON body").Wrap(err)
	}
	if err := s.Validate(doc); err != nil {
		ae := apperr.Validation("request does not match schema %s", name).Wrap(err)
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			ae = ae.WithMeta("violations", violations(ve))
		}
		return ae
	}
	return nil
}

// Decode reads the request body, validates it against the named schema and
// unmarshals it into dst.
func (v *Validator) Decode(r *http.Request, name string, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return apperr.Validation("failed to read body").Wrap(err)
	}
	if len(raw) > MaxBodyBytes {
		return apperr.Validation("request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	if err := v.Validate(name, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Validation("invalid JSON body").Wrap(err)
	}
	return nil
}

// violations flattens the leaf errors into "location: message" strings.
func violations(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + ve.Message}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, violations(c)...)
	}
	return out
}
