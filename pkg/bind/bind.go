// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/freshbulk/storefront/config"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/validate"
)

// JSON decodes r.Body into dest and runs its validate tags. The body is
// capped at MAX_BODY_BYTES. Every failure is an *apperr.Error of kind
// validation.
func JSON(r *http.Request, dest any) error {
	limit := config.MaxBodyBytes()
	body := http.MaxBytesReader(nil, r.Body, limit)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperr.Validationf("Request body too large (max %d bytes)", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return apperr.Validation("Request body is required")
		default:
			return apperr.Validation("Invalid JSON body")
		}
	}

	return validate.Check(dest)
}
