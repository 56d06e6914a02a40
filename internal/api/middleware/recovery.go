package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mcoot/guessnumber-go/internal/api/apierr"
)

// Recovery turns a handler panic into a JSON INTERNAL_ERROR response.
// Nothing is written once the connection has been hijacked.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec, ok := w.(*recorder)
			if !ok {
				rec = &recorder{ResponseWriter: w, status: http.StatusOK}
			}

			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("panic recovered",
					slog.Any("error", err),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", chimw.GetReqID(r.Context())),
				)
				if !rec.hijacked {
					apierr.WriteError(rec, apierr.NewInternalError())
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
