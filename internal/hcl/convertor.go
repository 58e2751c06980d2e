package hcl

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/pagecost/internal/ctxlog"
)

// Converter is the HCL implementation of config.Converter.
type Converter struct {
	evalCtx *hcl.EvalContext
}

// NewConverter creates a converter that evaluates expressions in evalCtx.
// A nil evalCtx gets the default variables and functions.
func NewConverter(evalCtx *hcl.EvalContext) *Converter {
	if evalCtx == nil {
		evalCtx = newEvalContext(nil)
	}
	return &Converter{evalCtx: evalCtx}
}

// DecodeOptions evaluates opts and stores each value in the field of target
// whose `cfg` tag names it.
func (c *Converter) DecodeOptions(ctx context.Context, target any, opts map[string]hcl.Expression) error {
	logger := ctxlog.FromContext(ctx)

	structVal := reflect.ValueOf(target)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() || structVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct, got %T", target)
	}
	structVal = structVal.Elem()

	fields := make(map[string]reflect.Value)
	for i := 0; i < structVal.NumField(); i++ {
		field := structVal.Type().Field(i)
		name := strings.Split(field.Tag.Get("cfg"), ",")[0]
		if name == "" || name == "-" || !field.IsExported() {
			continue
		}
		fields[name] = structVal.Field(i)
	}

	for name, expr := range opts {
		fieldVal, ok := fields[name]
		if !ok {
			return fmt.Errorf("unknown option '%s'", name)
		}
		val, diags := expr.Value(c.evalCtx)
		if diags.HasErrors() {
			return fmt.Errorf("option '%s': %w", name, diags)
		}
		if val.IsNull() {
			continue
		}
		if err := c.decode(ctx, val, fieldVal.Addr().Interface()); err != nil {
			return fmt.Errorf("failed to decode option '%s': %w", name, err)
		}
	}
	logger.Debug("Decoded options.", "count", len(opts), "target", structVal.Type().String())
	return nil
}

// decode converts val to the type implied by goVal and stores it there.
func (c *Converter) decode(ctx context.Context, val cty.Value, goVal any) error {
	logger := ctxlog.FromContext(ctx)
	impliedType, err := gocty.ImpliedType(reflect.ValueOf(goVal).Elem().Interface())
	if err != nil {
		return gocty.FromCtyValue(val, goVal)
	}

	convertedVal, err := convert.Convert(val, impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to required type %s: %w", val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}
	if !val.Type().Equals(convertedVal.Type()) {
		logger.Debug("Implicitly converted value type.",
			"from", val.Type().FriendlyName(),
			"to", convertedVal.Type().FriendlyName(),
		)
	}
	return gocty.FromCtyValue(convertedVal, goVal)
}
