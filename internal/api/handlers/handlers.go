// Package handlers adapts the vault facades to HTTP. Every handler reads the
// caller from the auth context and reports failures through response.FromError.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vaultestim/vaultestim/internal/api/auth"
	"github.com/vaultestim/vaultestim/internal/apperr"
)

// maxBodyBytes caps request bodies. Merge and refresh payloads are the largest.
const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Errorf(apperr.Invalid, "decode", "request body is empty")
		}
		return apperr.E(apperr.Invalid, "decode", fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func userID(r *http.Request) string {
	return auth.UserID(r.Context())
}
