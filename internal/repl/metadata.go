package repl

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dop251/goja"
)

const (
	varPreviewMaxChars = 200
)

// descriptor is the tagged sum spec.md §9 calls for: one of ArrayDesc,
// ObjectDesc, StringDesc, PrimitiveDesc, TruncatedDesc, ErrorDesc. It is
// built by describe(), a single pure function, and is what the Context
// Builder shows the model instead of raw values.
type descriptor struct {
	Kind    string `json:"kind"` // array|object|string|primitive|truncated|error
	Type    string `json:"type,omitempty"`
	Length  int    `json:"length,omitempty"`
	Keys    []string `json:"keys,omitempty"`
	Chars   int    `json:"chars,omitempty"`
	Preview string `json:"preview,omitempty"`
	Elem    string `json:"elementType,omitempty"`
}

// describe builds a descriptor for a goja value. It never reveals the full
// value, only structural facts and a bounded preview.
func describe(v goja.Value) descriptor {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return descriptor{Kind: "primitive", Type: "null"}
	}
	return describeExported(v.Export())
}

// describeExported builds a descriptor from an already-exported Go value
// (used for env/hoisted bindings and for sub-call return values alike).
func describeExported(exported any) descriptor {
	switch val := exported.(type) {
	case nil:
		return descriptor{Kind: "primitive", Type: "null"}
	case bool:
		return descriptor{Kind: "primitive", Type: "boolean", Preview: fmt.Sprintf("%v", val)}
	case int64, float64, int:
		return descriptor{Kind: "primitive", Type: "number", Preview: fmt.Sprintf("%v", val)}
	case string:
		return descriptor{Kind: "string", Type: "string", Chars: len(val), Preview: preview(val, varPreviewMaxChars)}
	case []any:
		elemType := ""
		if len(val) > 0 {
			elemType = describeExported(val[0]).Type
		}
		return descriptor{Kind: "array", Type: "array", Length: len(val), Elem: elemType}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return descriptor{Kind: "object", Type: "object", Keys: keys, Length: len(keys)}
	case TruncatedSentinel:
		return descriptor{Kind: "truncated", Type: "truncated", Length: val.OriginalLength}
	case ErrorSentinel:
		return descriptor{Kind: "error", Type: "error", Preview: preview(val.Message, varPreviewMaxChars)}
	default:
		return descriptor{Kind: "primitive", Type: fmt.Sprintf("%T", val)}
	}
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// FormatResultMetadata builds the result-only metadata string the Loop
// Controller emits as code-result{metadata} (spec.md §4.1 step 8, §8
// testable property: error results are prefixed "Result: ERROR"). It never
// includes the raw result value, only its descriptor.
func FormatResultMetadata(result any, errMsg string) string {
	if errMsg != "" {
		if es, ok := result.(ErrorSentinel); ok {
			return "Result: ERROR: " + es.Message
		}
		return "Result: ERROR"
	}
	if result == nil {
		return "Result: void"
	}
	d := describeExported(result)
	encoded, err := json.Marshal(d)
	if err != nil {
		return "Result: " + d.Type
	}
	return "Result: " + string(encoded)
}

// VarDescriptor is one named binding's descriptor, as shown to the model.
type VarDescriptor struct {
	Name string     `json:"name"`
	descriptor
}

// builtinAllowlist is the closed set of identifiers the env-metadata scan
// must filter out: API surface names and goja's own globals, never shown
// to the model as if they were user data (spec.md §4.2).
var builtinAllowlist = map[string]bool{
	"tabs": true, "activeTab": true, "openTab": true, "closeTab": true,
	"navigate": true, "switchTab": true, "waitForLoad": true, "waitForSelector": true,
	"execInTab": true, "getText": true, "getDOM": true, "getLinks": true,
	"getInputs": true, "querySelector": true, "querySelectorAll": true,
	"getSearchResults": true, "getWikiTables": true,
	"click": true, "type": true, "scroll": true,
	"parseHTML": true, "parsePage": true, "domQueryAll": true, "domQueryOne": true,
	"domQueryText": true, "freeDoc": true,
	"llm_query": true, "llm_batch": true,
	"env": true, "setFinal": true, "log": true, "sleep": true,
	"globalThis": true, "console": true, "Promise": true, "JSON": true,
	"Object": true, "Array": true, "Math": true, "Date": true, "undefined": true,
	"__data": true,
}
