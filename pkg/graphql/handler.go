// Package graphql serves a graphql-go schema over HTTP. Queries arrive as
// POST {"query", "variables", "operationName"} or GET ?query=.
package graphql

import (
	"encoding/json"
	"net/http"

	"github.com/graphql-go/graphql"

	"github.com/freshbulk/storefront/config"
	"github.com/freshbulk/storefront/pkg/response"
)

type request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	OperationName string         `json:"operationName"`
}

// NewSchema builds a read-only schema from a root query.
func NewSchema(query *graphql.Object) (graphql.Schema, error) {
	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

// Handler executes requests against schema. Execution errors are reported
// in the result's "errors" list with status 200; only malformed requests
// get 400.
func Handler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		switch r.Method {
		case http.MethodGet:
			req.Query = r.URL.Query().Get("query")
			req.OperationName = r.URL.Query().Get("operationName")
			if v := r.URL.Query().Get("variables"); v != "" {
				if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
					response.Error(w, http.StatusBadRequest, "Invalid variables")
					return
				}
			}
		case http.MethodPost:
			body := http.MaxBytesReader(w, r.Body, config.MaxBodyBytes())
			if err := json.NewDecoder(body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "Invalid JSON body")
				return
			}
		default:
			response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		if req.Query == "" {
			response.Error(w, http.StatusBadRequest, "Query is required")
			return
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        r.Context(),
		})
		response.OK(w, result)
	}
}
