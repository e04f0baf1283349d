package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go-wiki-engine/internal/logger"
)

// AppError represents a custom error type for the application.
type AppError struct {
	Error   error
	Message string
	Code    int
}

// AppHandler is a custom handler function type that returns an AppError.
type AppHandler func(http.ResponseWriter, *http.Request) *AppError

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Error is a middleware that converts handler errors into JSON error
// responses and recovers panics.
func Error(log logger.Logger) func(AppHandler) http.Handler {
	return func(next AppHandler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("%v", rec)
					}
					log.Error(err, "Panic recovered")
					writeError(w, &AppError{Error: err, Message: "Internal Server Error", Code: http.StatusInternalServerError})
				}
			}()

			if err := next(w, r); err != nil {
				log.Error(err.Error, err.Message)
				writeError(w, err)
			}
		})
	}
}

func writeError(w http.ResponseWriter, appErr *AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	_ = json.NewEncoder(w).Encode(errorBody{Error: appErr.Message, Status: appErr.Code})
}
