// Package response writes JSON bodies. Success bodies are the resource
// itself; failures are {"error": message} with an optional "fields" map.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/logger"
)

// ErrorBody is the shape of every failure response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// MessageBody is used for acknowledgements such as logout.
type MessageBody struct {
	Message string `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// OK sends 200 with v.
func OK(w http.ResponseWriter, v any) { JSON(w, http.StatusOK, v) }

// Created sends 201 with v.
func Created(w http.ResponseWriter, v any) { JSON(w, http.StatusCreated, v) }

// Message sends {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, MessageBody{Message: msg})
}

// Error sends {"error": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// Fail renders err. *apperr.Error values keep their status and message;
// anything else becomes a generic 500. Server-side failures are logged with
// their cause, which never reaches the client.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		logger.WithCtx(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	JSON(w, e.Status(), ErrorBody{Error: e.Message, Fields: e.Fields})
}

// StatusOf is the status Fail would write for err.
func StatusOf(err error) int { return apperr.From(err).Status() }

func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "Unauthorized")
}

func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, "Not found")
}
