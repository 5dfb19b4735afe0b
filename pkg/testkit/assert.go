package testkit

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AssertStatus checks the response code and prints the body on mismatch.
func AssertStatus(t testing.TB, res *Response, code int) bool {
	t.Helper()
	return assert.Equal(t, code, res.Code, "body: %s", res.Body)
}

// AssertError checks for an {"error": msg} response with the given code.
func AssertError(t testing.TB, res *Response, code int, msg string) {
	t.Helper()
	if !AssertStatus(t, res, code) {
		return
	}
	var body struct {
		Error string `json:"error"`
	}
	if assert.NoError(t, json.Unmarshal(res.Body, &body), "body: %s", res.Body) {
		assert.Equal(t, msg, body.Error)
	}
}

// AssertSubset passes when every key in expected appears in the body with
// an equal value. Keys absent from expected are ignored.
func AssertSubset(t testing.TB, expected string, res *Response) {
	t.Helper()
	var exp, act any
	if !assert.NoError(t, json.Unmarshal([]byte(expected), &exp), "expected is not JSON") {
		return
	}
	if !assert.NoError(t, json.Unmarshal(res.Body, &act), "body is not JSON: %s", res.Body) {
		return
	}
	if diffs := DiffJSON("", exp, act); len(diffs) > 0 {
		assert.Fail(t, "response body mismatch", "%s\nbody: %s", strings.Join(diffs, "\n"), res.Body)
	}
}

// DiffJSON lists differences between two decoded JSON values. Objects are
// compared by the expected side's keys only; arrays must match in length.
func DiffJSON(path string, expected, actual any) []string {
	var diffs []string
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return append(diffs, fmt.Sprintf("  %s: expected object, got %T", keyPath(path), actual))
		}
		for k, ev := range exp {
			p := keyPath(path) + "." + k
			av, exists := act[k]
			if !exists {
				diffs = append(diffs, fmt.Sprintf("  %s: missing in actual", p))
				continue
			}
			diffs = append(diffs, DiffJSON(p, ev, av)...)
		}
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return append(diffs, fmt.Sprintf("  %s: expected array, got %T", keyPath(path), actual))
		}
		if len(exp) != len(act) {
			diffs = append(diffs, fmt.Sprintf("  %s: array length expected=%d actual=%d", keyPath(path), len(exp), len(act)))
		}
		for i := 0; i < len(exp) && i < len(act); i++ {
			diffs = append(diffs, DiffJSON(fmt.Sprintf("%s[%d]", keyPath(path), i), exp[i], act[i])...)
		}
	default:
		if fmt.Sprintf("%v", expected) != fmt.Sprintf("%v", actual) {
			diffs = append(diffs, fmt.Sprintf("  %s:\n    - %v\n    + %v", keyPath(path), expected, actual))
		}
	}
	return diffs
}

func keyPath(path string) string {
	if path == "" {
		return "root"
	}
	return strings.TrimPrefix(path, ".")
}
