package testkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
)

// Step is one request in a scenario file. Scenario files hold a JSON array
// of steps run in order against one Client:
//
//	[
//	  {"name": "login", "as": "admin", "method": "POST", "url": "/auth/login",
//	   "body": {"email": "admin@example.com", "password": "secret"}, "expectedCode": 200},
//	  {"name": "create carrot", "as": "admin", "method": "POST", "url": "/products",
//	   "body": {"name": "Carrot", "price": 2.5}, "expectedCode": 201,
//	   "save": {"carrot": "id"}},
//	  {"name": "read it", "url": "/products/{{carrot}}", "expectedCode": 200,
//	   "expect": {"name": "Carrot"}}
//	]
//
// "as" picks a named cookie jar so one file can act as several users.
// "save" stores a value from the response under a name; later steps may
// reference it as {{name}}. Inside JSON a quoted "{{name}}" is replaced by
// the raw value, so saved numbers stay numbers.
type Step struct {
	Name         string            `json:"name"`
	As           string            `json:"as"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Body         json.RawMessage   `json:"body"`
	Headers      map[string]string `json:"headers"`
	ExpectedCode int               `json:"expectedCode"`
	Expect       json.RawMessage   `json:"expect"`
	Save         map[string]string `json:"save"`
}

// LoadSteps reads a scenario file.
func LoadSteps(path string) ([]Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", path, err)
	}
	var steps []Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", path, err)
	}
	for i, s := range steps {
		if s.Name == "" || s.URL == "" || s.ExpectedCode == 0 {
			return nil, fmt.Errorf("testkit: %q step %d needs name, url and expectedCode", path, i)
		}
	}
	return steps, nil
}

// RunScenario runs every step of the file at path as a subtest. A failed
// step stops the scenario, since later steps usually depend on it.
func RunScenario(t *testing.T, c *Client, path string) {
	t.Helper()
	steps, err := LoadSteps(path)
	if err != nil {
		t.Fatal(err)
	}

	users := map[string]*Client{"": c}
	saved := map[string]string{}

	for _, s := range steps {
		ok := t.Run(s.Name, func(t *testing.T) {
			client, found := users[s.As]
			if !found {
				client = c.Fork()
				users[s.As] = client
			}

			method := strings.ToUpper(s.Method)
			if method == "" {
				method = "GET"
			}
			var body any
			if len(s.Body) > 0 {
				body = expandJSON(string(s.Body), saved)
			}
			header := http.Header{}
			for k, v := range s.Headers {
				header.Set(k, expandText(v, saved))
			}

			res := client.Do(method, expandText(s.URL, saved), body, header)
			if !AssertStatus(t, res, s.ExpectedCode) {
				t.FailNow()
			}
			if len(s.Expect) > 0 {
				AssertSubset(t, expandJSON(string(s.Expect), saved), res)
			}
			if len(s.Save) == 0 {
				return
			}

			var decoded any
			if err := json.Unmarshal(res.Body, &decoded); err != nil {
				t.Fatalf("save from non-JSON body: %v", err)
			}
			for name, path := range s.Save {
				v, err := lookup(decoded, path)
				if err != nil {
					t.Fatalf("save %q: %v", name, err)
				}
				saved[name] = v
			}
		})
		if !ok {
			return
		}
	}
}

// saved values are raw JSON.
func expandJSON(s string, saved map[string]string) string {
	for k, raw := range saved {
		s = strings.ReplaceAll(s, `"{{`+k+`}}"`, raw)
	}
	return expandText(s, saved)
}

func expandText(s string, saved map[string]string) string {
	for k, raw := range saved {
		text := raw
		var str string
		if json.Unmarshal([]byte(raw), &str) == nil {
			text = str
		}
		s = strings.ReplaceAll(s, "{{"+k+"}}", text)
	}
	return s
}

// lookup walks a dotted path such as "items.0.price" through decoded JSON
// and returns the value found there as raw JSON.
func lookup(v any, path string) (string, error) {
	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return "", fmt.Errorf("no key %q", part)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return "", fmt.Errorf("bad index %q", part)
			}
			v = node[i]
		default:
			return "", fmt.Errorf("cannot descend into %T at %q", v, part)
		}
	}
	if v == nil {
		return "", fmt.Errorf("value at %q is null", path)
	}
	raw, err := json.Marshal(v)
	return string(raw), err
}
