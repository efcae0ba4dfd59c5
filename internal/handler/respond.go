package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
)

// Envelope is the uniform response shape. Data is always an object, never
// null, so clients can destructure without guarding.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess writes a success envelope with the given status code.
func RespondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	if data == nil {
		data = struct{}{}
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Data:    data,
		Message: message,
		Code:    status,
	})
}

// RespondError writes an error envelope, detecting domain.AppError for the
// status code. Unknown errors collapse to a generic 500 so internals never
// leak to clients.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		status = appErr.Status
		message = appErr.Message
	}

	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{
		Success: false,
		Data:    struct{}{},
		Message: message,
		Code:    status,
	})
}

// DecodeJSON reads and decodes a JSON request body into dst, capped at 1MiB.
func DecodeJSON(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, 1<<20)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return domain.ErrValidation("invalid request body")
	}
	return nil
}
