package testkit

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoServer() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /things", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		in["id"] = 7
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "x", Path: "/"})
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	})
	mux.HandleFunc("GET /things/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":`+r.PathValue("id")+`}`)
	})
	mux.HandleFunc("GET /whoami", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
		}
		_, _ = io.WriteString(w, `{}`)
	})
	return mux
}

func TestRunScenario(t *testing.T) {
	RunScenario(t, NewClient(t, echoServer()), "testdata/echo.json")
}

func TestClientKeepsCookies(t *testing.T) {
	c := NewClient(t, echoServer())
	AssertStatus(t, c.Get("/whoami"), http.StatusUnauthorized)
	AssertStatus(t, c.Post("/things", map[string]string{"name": "Leek"}), http.StatusCreated)
	AssertStatus(t, c.Get("/whoami"), http.StatusOK)
	AssertStatus(t, c.Fork().Get("/whoami"), http.StatusUnauthorized)
}

func TestLookup(t *testing.T) {
	var doc any
	require.NoError(t, json.Unmarshal([]byte(`{"items":[{"price":2.5,"name":"Carrot"}]}`), &doc))

	v, err := lookup(doc, "items.0.price")
	require.NoError(t, err)
	assert.Equal(t, "2.5", v)

	v, err = lookup(doc, "items.0.name")
	require.NoError(t, err)
	assert.Equal(t, `"Carrot"`, v)

	_, err = lookup(doc, "items.3.name")
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	saved := map[string]string{"id": "3", "name": `"Leek"`}
	assert.Equal(t, `{"productId":3,"label":"Leek"}`, expandJSON(`{"productId":"{{id}}","label":"{{name}}"}`, saved))
	assert.Equal(t, "/products/3/Leek", expandText("/products/{{id}}/{{name}}", saved))
}

func TestDiffJSONIgnoresExtraKeys(t *testing.T) {
	var exp, act any
	require.NoError(t, json.Unmarshal([]byte(`{"a":1}`), &exp))
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":2}`), &act))
	assert.Empty(t, DiffJSON("", exp, act))

	require.NoError(t, json.Unmarshal([]byte(`{"a":2}`), &act))
	assert.Len(t, DiffJSON("", exp, act), 1)
}
