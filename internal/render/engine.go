// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

// Package render implements the sandboxed CEL template renderer (the
// "Template Renderer" component): it evaluates ${...} expressions embedded
// in strings, map keys, and nested structures against a set of named
// variables, using CEL's own safety model (no reflection into Go internals,
// no host I/O, strict undefined-variable errors) as the sandbox boundary.
package render

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// omitValue is a sentinel used to mark values that should be pruned after rendering.
type omitValue struct{}

var omitSentinel = &omitValue{}

const omitErrMsg = "__OSMO_RENDERER_OMIT__"

// omitCELValue is a CEL value type representing an omitted field. Returning
// it instead of an error lets omit() be used inside map literals and list
// elements, not just as a top-level expression result.
type omitCELValue struct{}

var (
	omitCEL     = &omitCELValue{}
	omitTypeVal = cel.ObjectType("omit")
)

func (o *omitCELValue) ConvertToNative(reflect.Type) (interface{}, error) { return omitSentinel, nil }
func (o *omitCELValue) ConvertToType(ref.Type) ref.Val                    { return o }
func (o *omitCELValue) Equal(other ref.Val) ref.Val {
	if _, ok := other.(*omitCELValue); ok {
		return types.True
	}
	return types.False
}
func (o *omitCELValue) Type() ref.Type      { return omitTypeVal }
func (o *omitCELValue) Value() interface{}  { return omitSentinel }

// Engine evaluates CEL-backed templates that can contain inline expressions,
// map keys, and nested structures.
type Engine struct {
	cache *EngineCache
}

// NewEngine creates a new CEL template engine with default cache settings.
func NewEngine() *Engine {
	return &Engine{cache: NewEngineCache()}
}

// NewEngineWithOptions creates a new CEL template engine with custom cache
// options. Use this for tests and for benchmarking different caching
// strategies.
func NewEngineWithOptions(opts ...EngineOption) *Engine {
	return &Engine{cache: NewEngineCacheWithOptions(opts...)}
}

// Render walks data and evaluates CEL expressions against variables.
func (e *Engine) Render(data any, variables map[string]any) (any, error) {
	switch v := data.(type) {
	case string:
		return e.renderString(v, variables)
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			renderedKey, err := e.renderString(key, variables)
			if err != nil {
				return nil, err
			}
			evaluatedKey := key
			if keyStr, ok := renderedKey.(string); ok {
				evaluatedKey = keyStr
			} else if renderedKey != key {
				return nil, fmt.Errorf("dynamic map key %q must evaluate to a string, got %T: %v", key, renderedKey, renderedKey)
			}

			renderedValue, err := e.Render(value, variables)
			if err != nil {
				return nil, err
			}
			if renderedValue == omitSentinel {
				continue
			}
			result[evaluatedKey] = renderedValue
		}
		return result, nil
	case []any:
		result := make([]any, 0, len(v))
		for _, item := range v {
			rendered, err := e.Render(item, variables)
			if err != nil {
				return nil, err
			}
			if rendered == omitSentinel {
				continue
			}
			result = append(result, rendered)
		}
		return result, nil
	default:
		return v, nil
	}
}

// renderString evaluates CEL expressions within a string value.
//
// Standalone expression mode: when the string contains a single expression
// occupying the whole string (after trimming), the expression's native type
// is returned directly ("${spec.replicas}" evaluates to int 3, not "3").
//
// Interpolation mode: when the string mixes text with one or more
// expressions, each is evaluated and stringified for substitution
// ("image:${spec.name}:${spec.tag}" becomes "image:myapp:v1.0").
func (e *Engine) renderString(str string, variables map[string]any) (any, error) {
	expressions := findCELExpressions(str)
	if len(expressions) == 0 {
		return str, nil
	}

	trimmed := strings.TrimSpace(str)
	if len(expressions) == 1 && expressions[0].fullExpr == trimmed {
		result, err := e.evaluateCEL(expressions[0].innerExpr, variables)
		return normalizeCELResult(result, err)
	}

	rendered := str
	for _, match := range expressions {
		value, err := e.evaluateCEL(match.innerExpr, variables)
		if err != nil {
			return nil, err
		}

		var replacement string
		switch typed := value.(type) {
		case string:
			replacement = typed
		case int64:
			replacement = fmt.Sprintf("%d", typed)
		case float64:
			replacement = fmt.Sprintf("%g", typed)
		case bool:
			replacement = fmt.Sprintf("%t", typed)
		default:
			bytes, err := json.Marshal(typed)
			if err != nil {
				replacement = fmt.Sprintf("%v", typed)
			} else {
				replacement = string(bytes)
			}
		}

		rendered = strings.Replace(rendered, match.fullExpr, replacement, 1)
	}

	return rendered, nil
}

type celMatch struct {
	fullExpr  string
	innerExpr string
}

// findCELExpressions locates all ${...} expression markers within a string
// using brace-balanced parsing, so nested braces (e.g. in merge({a: 1})
// calls) resolve to the correct closing delimiter.
func findCELExpressions(str string) []celMatch {
	var matches []celMatch
	i := 0
	for i < len(str) {
		start := strings.Index(str[i:], "${")
		if start == -1 {
			break
		}
		start += i

		brace := 1
		pos := start + 2
		for pos < len(str) && brace > 0 {
			switch str[pos] {
			case '{':
				brace++
			case '}':
				brace--
			}
			pos++
		}

		if brace == 0 {
			matches = append(matches, celMatch{
				fullExpr:  str[start:pos],
				innerExpr: str[start+2 : pos-1],
			})
			i = pos
		} else {
			break
		}
	}
	return matches
}

// normalizeCELResult surfaces the omit sentinel through both pointer and
// value comparisons so callers relying on either pattern see it.
func normalizeCELResult(result any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if result == omitSentinel {
		return omitSentinel, nil
	}
	if val, ok := result.(*omitValue); ok && val == omitSentinel {
		return omitSentinel, nil
	}
	return result, nil
}

func (e *Engine) evaluateCEL(expression string, variables map[string]any) (any, error) {
	env, err := e.getOrCreateEnv(variables)
	if err != nil {
		return nil, fmt.Errorf("build CEL environment: %w", err)
	}

	envKey := envCacheKey(variables)

	var program cel.Program
	if cached, ok := e.cache.GetProgram(envKey, expression); ok {
		program = cached
	} else {
		parsed, issues := env.Compile(expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile expression %q: %w", expression, issues.Err())
		}

		program, err = env.Program(parsed)
		if err != nil {
			return nil, fmt.Errorf("create program for expression %q: %w", expression, err)
		}

		e.cache.SetProgram(envKey, expression, program)
	}

	result, _, err := program.Eval(variables)
	if err != nil {
		if err.Error() == omitErrMsg {
			return omitSentinel, nil
		}
		return nil, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}

	return convertCELValue(result), nil
}

func (e *Engine) getOrCreateEnv(variables map[string]any) (*cel.Env, error) {
	cacheKey := envCacheKey(variables)

	if cached, ok := e.cache.GetEnv(cacheKey); ok {
		return cached, nil
	}

	env, err := buildEnv(variables)
	if err != nil {
		return nil, err
	}

	e.cache.SetEnv(cacheKey, env)
	return env, nil
}

// buildEnv wires up CEL with the helper surface that templates rely on:
// omit(), merge(), hash() and sanitizeName(), plus the standard-library
// extensions the teacher's renderer exposes.
func buildEnv(variables map[string]any) (*cel.Env, error) {
	envOptions := []cel.EnvOption{
		cel.OptionalTypes(),
	}

	for key := range variables {
		envOptions = append(envOptions, cel.Variable(key, cel.DynType))
	}

	envOptions = append(envOptions,
		ext.Strings(),
		ext.Encoders(),
		ext.Math(),
		ext.Lists(),
		ext.Sets(),
		ext.TwoVarComprehensions(),
		sanitizeNameMacro,
	)
	envOptions = append(envOptions, CustomFunctions()...)

	return cel.NewEnv(envOptions...)
}

func convertCELList(list any) any {
	switch l := list.(type) {
	case []ref.Val:
		result := make([]any, 0, len(l))
		for _, item := range l {
			converted := convertCELValue(item)
			if converted == omitSentinel {
				continue
			}
			result = append(result, converted)
		}
		return result
	case []any:
		return convertAnyList(l)
	default:
		return list
	}
}

func convertAnyList(list []any) []any {
	result := make([]any, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case ref.Val:
			converted := convertCELValue(t)
			if converted == omitSentinel {
				continue
			}
			result = append(result, converted)
		case map[ref.Val]ref.Val:
			result = append(result, convertRefValMap(t))
		default:
			result = append(result, item)
		}
	}
	return result
}

func convertRefValMap(m map[ref.Val]ref.Val) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		converted := convertCELValue(v)
		if converted == omitSentinel {
			continue
		}
		result[fmt.Sprintf("%v", k.Value())] = converted
	}
	return result
}

func convertStringAnyMap(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		switch nested := v.(type) {
		case ref.Val:
			converted := convertCELValue(nested)
			if converted == omitSentinel {
				continue
			}
			result[k] = converted
		default:
			result[k] = v
		}
	}
	return result
}

// convertCELValue unwraps CEL's internal ref.Val representation into native
// Go types that marshal cleanly to JSON/YAML.
func convertCELValue(val ref.Val) any {
	if _, ok := val.(*omitCELValue); ok {
		return omitSentinel
	}

	if types.IsError(val) {
		if err, ok := val.Value().(error); ok && err.Error() == omitErrMsg {
			return omitSentinel
		}
	}

	switch val.Type() {
	case types.StringType:
		return val.Value().(string)
	case types.IntType:
		return val.Value().(int64)
	case types.UintType:
		return val.Value().(uint64)
	case types.DoubleType:
		return val.Value().(float64)
	case types.BoolType:
		return val.Value().(bool)
	case types.ListType:
		return convertCELList(val.Value())
	case types.MapType:
		switch m := val.Value().(type) {
		case map[ref.Val]ref.Val:
			return convertRefValMap(m)
		case map[string]any:
			return convertStringAnyMap(m)
		default:
			return val.Value()
		}
	default:
		switch typed := val.Value().(type) {
		case ref.Val:
			return convertCELValue(typed)
		default:
			return typed
		}
	}
}

// RemoveOmittedFields walks a rendered tree and strips the omit() sentinel,
// dropping map entries and list elements that resolved to it.
func RemoveOmittedFields(data any) any {
	switch v := data.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			if value == omitSentinel {
				continue
			}
			cleaned := RemoveOmittedFields(value)
			if cleaned != omitSentinel {
				result[key] = cleaned
			}
		}
		return result
	case []any:
		result := make([]any, 0, len(v))
		for _, item := range v {
			if item == omitSentinel {
				continue
			}
			cleaned := RemoveOmittedFields(item)
			if cleaned != omitSentinel {
				result = append(result, cleaned)
			}
		}
		return result
	default:
		return v
	}
}

// IsMissingDataError reports whether err reflects a missing key/field or an
// undeclared variable reference, the two CEL error shapes that callers
// treat as "no data available" rather than a template defect (used for
// graceful degradation in optional include-when style expressions).
func IsMissingDataError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such key") || strings.Contains(msg, "undeclared reference")
}
