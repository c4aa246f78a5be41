// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"hash/fnv"
	"maps"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"
	"github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/parser"
)

// maxResourceNameLength mirrors the Kubernetes DNS subdomain limit that
// generated pod/task names must respect.
const maxResourceNameLength = 253

// CustomFunctions returns the omit/merge/hash/sanitizeName() CEL bindings
// exposed to every template expression.
//
// # omit()
//
// Marks a map value or list element for removal after rendering, letting
// templates conditionally drop fields:
//
//	${ condition ? actualValue : omit() }
//
// # merge(a, b)
//
// Shallow-merges two maps, with b's keys overriding a's. Nested maps are
// replaced wholesale, not merged recursively — use strategic merge patches
// for deep composition.
//
// # hash(s)
//
// Returns an 8-character FNV-32a hex digest of s, deterministic across
// calls with the same input. Used to suffix generated names for
// uniqueness.
//
// # sanitizeName(...)
//
// Joins its arguments (a single string, a list of strings, or variadic
// strings via macro expansion) into a valid Kubernetes resource name:
// lowercased, non [a-z0-9-] runs collapsed to a single '-', trimmed of
// leading/trailing '-', truncated to fit maxResourceNameLength with an
// 8-character hash suffix appended whenever truncation occurred.
func CustomFunctions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Macros(mergeMacro, sanitizeNameMacro),
		cel.Function("omit",
			cel.Overload("omit", []*cel.Type{}, cel.DynType,
				cel.FunctionBinding(func(values ...ref.Val) ref.Val {
					return omitCEL
				}),
			),
		),
		cel.Function("merge",
			cel.Overload("merge_map_map",
				[]*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.MapType(cel.StringType, cel.DynType)},
				cel.MapType(cel.StringType, cel.DynType),
				cel.BinaryBinding(mergeMapFunction),
			),
		),
		cel.Function("hash",
			cel.Overload("hash_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					return types.String(hashString(arg.Value().(string)))
				}),
			),
		),
		cel.Function("sanitizeName",
			cel.Overload("sanitize_name_string", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					return sanitizeNameFromParts([]string{arg.Value().(string)})
				}),
			),
			cel.Overload("sanitize_name_list", []*cel.Type{cel.ListType(cel.StringType)}, cel.StringType,
				cel.UnaryBinding(sanitizeNameFromCELList),
			),
		),
	}
}

// mergeMacro lets templates chain merge(a, b, c) into merge(merge(a, b), c)
// instead of requiring nested calls.
var mergeMacro = cel.GlobalVarArgMacro("merge",
	func(eh parser.ExprHelper, target ast.Expr, args []ast.Expr) (ast.Expr, *common.Error) {
		if len(args) < 2 {
			return nil, nil
		}
		call := args[0]
		for _, arg := range args[1:] {
			call = eh.NewCall("merge", call, arg)
		}
		return call, nil
	})

// sanitizeNameMacro expands variadic calls into a single list argument:
// sanitizeName("a", "b") -> sanitizeName(["a", "b"]).
var sanitizeNameMacro = cel.GlobalVarArgMacro("sanitizeName",
	func(eh parser.ExprHelper, target ast.Expr, args []ast.Expr) (ast.Expr, *common.Error) {
		switch len(args) {
		case 0:
			return eh.NewCall("sanitizeName", eh.NewList()), nil
		case 1:
			return nil, nil
		default:
			return eh.NewCall("sanitizeName", eh.NewList(args...)), nil
		}
	})

func mergeMapFunction(lhs, rhs ref.Val) ref.Val {
	baseMap := make(map[string]any)
	overrideMap := make(map[string]any)

	switch b := lhs.Value().(type) {
	case map[string]any:
		baseMap = b
	case map[ref.Val]ref.Val:
		for k, v := range b {
			baseMap[string(k.(types.String))] = v.Value()
		}
	}

	switch o := rhs.Value().(type) {
	case map[string]any:
		overrideMap = o
	case map[ref.Val]ref.Val:
		for k, v := range o {
			overrideMap[string(k.(types.String))] = v.Value()
		}
	}

	result := make(map[string]any)
	maps.Copy(result, baseMap)
	maps.Copy(result, overrideMap)

	celResult := make(map[ref.Val]ref.Val, len(result))
	for k, v := range result {
		celResult[types.String(k)] = types.DefaultTypeAdapter.NativeToValue(v)
	}
	return types.NewDynamicMap(types.DefaultTypeAdapter, celResult)
}

func hashString(input string) string {
	h := fnv.New32a()
	h.Write([]byte(input))
	return fmt.Sprintf("%08x", h.Sum32())
}

// sanitizeNameFromParts joins parts with '-', lowercases, collapses
// non-DNS-label characters, and truncates with a hash suffix if needed.
func sanitizeNameFromParts(parts []string) ref.Val {
	joined := strings.ToLower(strings.Join(parts, "-"))

	var b strings.Builder
	lastDash := false
	for _, r := range joined {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	name := strings.Trim(b.String(), "-")

	if len(name) <= maxResourceNameLength {
		return types.String(name)
	}

	suffix := "-" + hashString(joined)
	keep := maxResourceNameLength - len(suffix)
	if keep < 0 {
		keep = 0
	}
	truncated := strings.TrimRight(name[:keep], "-")
	return types.String(truncated + suffix)
}

func sanitizeNameFromCELList(arg ref.Val) ref.Val {
	var parts []string
	switch v := arg.Value().(type) {
	case string:
		parts = append(parts, v)
	case []ref.Val:
		for _, item := range v {
			if str, ok := item.Value().(string); ok {
				parts = append(parts, str)
			}
		}
	case []any:
		for _, item := range v {
			if str, ok := item.(string); ok {
				parts = append(parts, str)
			}
		}
	}
	return sanitizeNameFromParts(parts)
}
