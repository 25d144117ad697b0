package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/fairmatch/internal/api/apierr"
	"github.com/mcoot/fairmatch/internal/middleware"
)

// Recovery turns handler panics into a JSON INTERNAL_ERROR naming the request
// id, which matches the id on the logged stack trace
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger.With(slog.String("component", "api")), writePanic)
}

func writePanic(w http.ResponseWriter, r *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalErrorWithRef(middleware.RequestID(r.Context())))
}
