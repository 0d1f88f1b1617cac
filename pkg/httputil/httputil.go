// Package httputil holds small JSON request/response helpers shared by every
// handler, following the write-error/write-json split the codebase uses
// throughout.
package httputil

import (
	"encoding/json"
	"net/http"

	"alibi/pkg/apierrors"
)

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError converts err into the stable {"error","message"} body and
// status defined in spec §6.1. Internal errors never leak their message.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := apierrors.FromDomain(err)
	body := errorBody{Error: string(apiErr.Code)}
	if apiErr.Code != apierrors.CodeInternal {
		body.Message = apiErr.Message
	}
	WriteJSON(w, apiErr.Code.Status(), body)
}

// DecodeJSON decodes the request body into v, returning a bad_input error on
// failure.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierrors.New(apierrors.CodeBadInput, "malformed JSON body: "+err.Error())
	}
	return nil
}
