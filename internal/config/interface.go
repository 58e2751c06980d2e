package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths, merges it over the
	// defaults, and returns a matching Converter. Paths that do not exist
	// are skipped.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter binds raw audit options to the Go types audits use.
type Converter interface {
	// DecodeOptions evaluates opts and stores them in the fields of target,
	// which must be a non-nil pointer to a struct. Fields are matched by
	// their `cfg` tag; options without a matching field are an error, and
	// fields without an option keep their current value.
	DecodeOptions(ctx context.Context, target any, opts map[string]hcl.Expression) error
}
