package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error shape of every failed request
type ErrorBody struct {
	Msg   string `json:"msg"`
	Error string `json:"error,omitempty"`
}

// WriteError writes {msg, error} with status.
func WriteError(w http.ResponseWriter, status int, msg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Msg: msg, Error: detail})
}
