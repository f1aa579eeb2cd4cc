package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/fields"
	"github.com/adfharrison1/go-odm/pkg/models"
	"github.com/adfharrison1/go-odm/pkg/odm"
	"github.com/adfharrison1/go-odm/pkg/storage"
)

// Handler provides HTTP handlers over the demo models
type Handler struct {
	catalog *models.Catalog
	logger  *zap.Logger
}

type HandlerOption func(*Handler)

func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(catalog *models.Catalog, options ...HandlerOption) *Handler {
	h := &Handler{
		catalog: catalog,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// decodeBody decodes a JSON object keeping numbers as json.Number, so
// integer fields see integers.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	var dup *storage.DuplicateKeyError
	switch {
	case fields.IsValidationError(err), odm.ErrInvalidID.Has(err):
		return http.StatusBadRequest
	case odm.ErrNotFound.Has(err), odm.ErrDeleted.Has(err):
		return http.StatusNotFound
	case errors.As(err, &dup), mongo.IsDuplicateKeyError(err):
		return http.StatusConflict
	case odm.ErrPolymorphicWrite.Has(err):
		return http.StatusMethodNotAllowed
	case odm.ErrNotConnected.Has(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail logs err and writes it as a JSON error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err)
}
