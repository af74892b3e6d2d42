package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/perfcycle/perfcycle/internal/campaign"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Message string `json:"message"`
}

// writeErr maps the campaign error kinds onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body so internals do not leak.
func writeErr(w http.ResponseWriter, err error) {
	var (
		ve *campaign.ValidationError
		pe *campaign.PermissionError
		ce *campaign.PreconditionError
		ne *campaign.NotFoundError
		xe *campaign.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errBody{Message: ve.Error()})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusForbidden, errBody{Message: pe.Error()})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusUnprocessableEntity, errBody{Message: ce.Error()})
	case errors.As(err, &ne):
		writeJSON(w, http.StatusNotFound, errBody{Message: ne.Error()})
	case errors.As(err, &xe):
		writeJSON(w, http.StatusConflict, errBody{Message: xe.Error()})
	case errors.As(err, new(*validator.InvalidValidationError)):
		writeJSON(w, http.StatusBadRequest, errBody{Message: "invalid request"})
	default:
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			writeJSON(w, http.StatusBadRequest, errBody{Message: fieldErrs.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errBody{Message: "something went wrong"})
	}
}

func decodeValid(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &campaign.ValidationError{Msg: "bad json"}
	}
	return validate.Struct(v)
}
