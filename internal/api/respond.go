package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pbaille/seen/internal/domain"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{Status: "error", Code: status, Message: message})
}

// statusFor maps registry errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case domain.IsValidationError(err), domain.IsDuplicateEntry(err):
		return http.StatusBadRequest
	case domain.IsPageOutOfRange(err):
		return http.StatusNotFound
	case domain.IsDeleteFailed(err):
		return http.StatusInternalServerError
	case domain.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with the status from statusFor. Unexpected
// errors are logged and their details withheld from the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()

	var ve domain.ValidationError
	if errors.As(err, &ve) {
		message = ve.Message
	}
	var dup domain.DuplicateEntryError
	if errors.As(err, &dup) {
		message = fmt.Sprintf("Seen entry matching the value '%s' is already added", dup.Value)
	}

	var df *domain.DeleteFailedError
	switch {
	case errors.As(err, &df):
		zerolog.Ctx(r.Context()).Error().Err(err).Ints64("ids", df.IDs).Msg("bulk delete partially failed")
		message = "Could not delete entry ID " + joinIDs(df.IDs)
	case status == http.StatusInternalServerError:
		zerolog.Ctx(r.Context()).Error().Stack().Err(err).Msg("request failed")
		message = http.StatusText(status)
	}

	writeError(w, r, status, message)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
