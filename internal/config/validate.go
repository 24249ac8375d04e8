package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is one rule the configuration breaks.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every violation found; validation does not stop
// at the first.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Validate checks the configuration against the embedded schema, then the
// rules CUE cannot express.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	var errs ValidationErrors
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		errs = append(errs, fromCUE(err)...)
	}

	for i, s := range c.Sinks {
		if _, err := s.TTLDuration(); err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("sinks.%d.ttl", i),
				Message: err.Error(),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func fromCUE(err error) ValidationErrors {
	var out ValidationErrors
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve := ValidationError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		if key := ve.Error(); !seen[key] {
			seen[key] = true
			out = append(out, ve)
		}
	}
	return out
}
