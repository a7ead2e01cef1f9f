package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/airchainpay/relay/internal/config"
	"github.com/airchainpay/relay/internal/resilience"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorBody is the shape named in §7: {error, message, timestamp, request_id}.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	writeJSON(w, status, errorBody{
		Error:     kind,
		Message:   message,
		Timestamp: nowISO(),
		RequestID: requestIDFrom(r),
	})
}

// writeResilienceError maps a *resilience.Error (or any error) to the §7
// HTTP status and body, hiding internal detail outside development mode.
func (s *Server) writeResilienceError(w http.ResponseWriter, r *http.Request, err error) {
	status := resilience.HTTPStatus(err)
	kind := "internal_error"
	message := "an internal error occurred"

	if re, ok := err.(*resilience.Error); ok {
		kind = string(re.Kind)
		if s.developmentMode() {
			message = re.Message
		} else if status < http.StatusInternalServerError {
			message = re.Message
		}
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}
	writeError(w, r, status, kind, message)
}

func (s *Server) developmentMode() bool {
	return s.cfg.Current().Environment == config.EnvDevelopment
}
