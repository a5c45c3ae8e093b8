package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/me/wolf/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, nil, apiErr)
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// classifyError maps construction and lookup errors onto an HTTP status and
// API error body.
func classifyError(err error) (int, *model.APIError) {
	var (
		apiErr  *model.APIError
		cfgErr  *model.ConfigurationError
		missing *model.MissingInputError
		unknown *model.UnknownInputError
		typeErr *model.InputTypeError
		scatter *model.ScatterTypeError
		empty   *model.EmptyScatterError
		cycle   *model.CycleError
	)
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.Code {
		case model.ErrNotFound:
			return http.StatusNotFound, apiErr
		case model.ErrValidation, model.ErrConfiguration:
			return http.StatusBadRequest, apiErr
		}
		return http.StatusInternalServerError, apiErr
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, &model.APIError{
			Code:    model.ErrConfiguration,
			Message: err.Error(),
			Details: []model.FieldError{{Field: cfgErr.Key, Message: cfgErr.Error()}},
		}
	case errors.As(err, &missing):
		return http.StatusBadRequest, model.NewValidationError(err.Error(),
			model.FieldError{Field: missing.Input, Message: "required"})
	case errors.As(err, &unknown):
		return http.StatusBadRequest, model.NewValidationError(err.Error(),
			model.FieldError{Field: unknown.Input, Message: "not declared"})
	case errors.As(err, &typeErr):
		return http.StatusBadRequest, model.NewValidationError(err.Error(),
			model.FieldError{Field: typeErr.Input, Message: "want " + typeErr.Want})
	case errors.As(err, &scatter), errors.As(err, &empty):
		return http.StatusBadRequest, model.NewValidationError(err.Error())
	case errors.As(err, &cycle):
		return http.StatusInternalServerError, &model.APIError{Code: model.ErrInternal, Message: err.Error()}
	}
	return http.StatusInternalServerError, &model.APIError{Code: model.ErrInternal, Message: err.Error()}
}
