package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// apiKeyHeader carries the API key of a request.
const apiKeyHeader = "markovtext-auth"

// Authenticate checks for the configured key in the "markovtext-auth" header.
// With no key configured the API is open.
func (m *ModelAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.config.Server.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get(apiKeyHeader)
		if apiKey == "" {
			respondWithError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}

		given := hashAPIKey(apiKey)
		want := hashAPIKey(m.config.Server.APIKey)
		if subtle.ConstantTimeCompare(given[:], want[:]) != 1 {
			m.logger.Warn("Rejected request with an invalid API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			respondWithError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hashAPIKey(key string) [sha256.Size]byte {
	return sha256.Sum256([]byte(key))
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
