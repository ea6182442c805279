package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	wis "wis-backend"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Details []wis.ErrorDetail `json:"details,omitempty"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("invalid json payload")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeInputError reports a rejected sample or plant, listing every bad field.
func writeInputError(w http.ResponseWriter, err error) {
	var verr *wis.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Details: verr.Details})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
