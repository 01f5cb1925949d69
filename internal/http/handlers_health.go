package httpx

import (
	"io"
	"net/http"
)

const healthResponse = `{"status":"ok"}`

const authHealthResponse = "Auth service is running!"

// actuatorHealthResponse mirrors the actuator shape existing probes expect.
const actuatorHealthResponse = `{"status":"UP"}`

// healthHandler returns a simple 200 OK status for readiness/liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, r, healthResponse)
}

func actuatorHealthHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, r, actuatorHealthResponse)
}

// authHealthHandler is the plain-text liveness probe under the auth prefix.
func authHealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, authHealthResponse); err != nil {
		return
	}
}

func writeHealth(w http.ResponseWriter, r *http.Request, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, body); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
