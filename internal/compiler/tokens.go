// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/osmo-project/osmo/internal/model"
)

// byteScales lists the unit suffixes a USER_MEMORY/USER_STORAGE value is
// exposed under (§4.3 step 5), largest first so bare-value formatting picks
// the most natural unit.
var byteScales = []struct {
	suffix string
	factor float64
}{
	{"Ti", 1 << 40},
	{"Gi", 1 << 30},
	{"Mi", 1 << 20},
	{"Ki", 1 << 10},
	{"B", 1},
	{"m", 0.001},
}

// BuildUserTokens derives the `{{USER_*}}` token set (§4.3 step 5) from a
// resolved ResourceSpec. USER_CPU/USER_GPU are numeric counts;
// USER_MEMORY/USER_STORAGE each expose a bare value (with unit), `_VAL`,
// `_UNIT`, and one key per scale in byteScales. A zero value is omitted
// entirely (nil) so ApplyTokens strips the field it substitutes into,
// rather than emitting a literal "0".
func BuildUserTokens(spec model.ResourceSpec) map[string]any {
	tokens := map[string]any{
		"USER_CPU": spec.CPU,
		"USER_GPU": spec.GPU,
	}

	addByteTokens(tokens, "USER_MEMORY", spec.Memory)
	addByteTokens(tokens, "USER_STORAGE", spec.Storage)

	if len(spec.NodesExcluded) > 0 {
		list := make([]any, len(spec.NodesExcluded))
		for i, n := range spec.NodesExcluded {
			list[i] = n
		}
		tokens["USER_EXCLUDED_NODES"] = list
	} else {
		tokens["USER_EXCLUDED_NODES"] = nil
	}

	return tokens
}

func addByteTokens(tokens map[string]any, prefix string, bytes int64) {
	if bytes <= 0 {
		tokens[prefix] = nil
		tokens[prefix+"_VAL"] = nil
		tokens[prefix+"_UNIT"] = nil
		for _, scale := range byteScales {
			tokens[prefix+"_"+scale.suffix] = nil
		}
		return
	}

	val, unit := bestByteUnit(bytes)
	tokens[prefix] = fmt.Sprintf("%s%s", val, unit)
	n, _ := strconv.ParseInt(val, 10, 64) // bestByteUnit only returns whole numbers
	tokens[prefix+"_VAL"] = n
	tokens[prefix+"_UNIT"] = unit
	for _, scale := range byteScales {
		tokens[prefix+"_"+scale.suffix] = formatScaled(bytes, scale.factor)
	}
}

func bestByteUnit(bytes int64) (string, string) {
	for _, scale := range byteScales[:len(byteScales)-1] { // skip "m", never the "natural" unit
		if float64(bytes) >= scale.factor && isWhole(float64(bytes)/scale.factor) {
			return formatScaled(bytes, scale.factor), scale.suffix
		}
	}
	return fmt.Sprintf("%d", bytes), "B"
}

func formatScaled(bytes int64, factor float64) string {
	v := float64(bytes) / factor
	if isWhole(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

func isWhole(v float64) bool { return v == float64(int64(v)) }

var tokenRE = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// ApplyTokens substitutes `{{TOKEN}}` occurrences in v's strings using
// tokens, recursing through maps and slices. A string that is *exactly* one
// token keeps that token's native type (so `"{{USER_GPU}}"` becomes the
// number 2, not the string "2"); a token embedded in a larger string is
// interpolated textually. Per §9's design note, a map key whose value
// resolves to nil is dropped from the result rather than kept as a literal
// unresolved token.
func ApplyTokens(v any, tokens map[string]any) any {
	switch val := v.(type) {
	case string:
		return applyTokensToString(val, tokens)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			resolved := ApplyTokens(child, tokens)
			if resolved == nil {
				continue
			}
			out[k] = resolved
		}
		return out
	case []any:
		out := make([]any, 0, len(val))
		for _, child := range val {
			resolved := ApplyTokens(child, tokens)
			if resolved == nil {
				continue
			}
			out = append(out, resolved)
		}
		return out
	default:
		return v
	}
}

func applyTokensToString(s string, tokens map[string]any) any {
	if m := tokenRE.FindStringSubmatch(s); m != nil && m[0] == s {
		val, known := tokens[m[1]]
		if !known {
			return s
		}
		return val
	}

	return tokenRE.ReplaceAllStringFunc(s, func(match string) string {
		name := tokenRE.FindStringSubmatch(match)[1]
		val, known := tokens[name]
		if !known {
			return match // leave unrecognized tokens (e.g. K8_*) for a later resolution stage
		}
		if val == nil {
			return ""
		}
		return fmt.Sprintf("%v", val)
	})
}
