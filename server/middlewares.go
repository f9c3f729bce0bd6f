package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Daskott/kinfolk/colors"
	"github.com/Daskott/kinfolk/server/models"
)

type ResponseWriterWithStatus struct {
	http.ResponseWriter
	Status int
}

func (r *ResponseWriterWithStatus) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		responseWriter := &ResponseWriterWithStatus{
			ResponseWriter: w,
			Status:         200,
		}

		defer func() {
			logg.Info(
				r.Method, " ",
				r.RequestURI, " ",
				colors.Status(responseWriter.Status), " ",
				colors.Yellow(fmt.Sprintf("[%v]", time.Since(start))))
		}()

		next.ServeHTTP(responseWriter, r)
	})
}

func initialContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")

		// Add decoded token to request context
		ctx := context.WithValue(r.Context(), RequestContextKey("decodedJWT"), decodeAndVerifyAuthHeader(r.Header.Get("Authorization")))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func protectedRouteMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decoded := decodedJWT(r)
		if decoded.ErrorMsg != "" || decoded.User == nil {
			writeResponse(w, ResponsePayload{Errors: []string{decoded.ErrorMsg}}, http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// roleRouteMiddleware only lets through callers whose role passes allowed.
func roleRouteMiddleware(allowed func(role string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed(requestUser(r).RoleName()) {
				writeResponse(w, ResponsePayload{Errors: []string{"action is forbidden"}}, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

var (
	adminRouteMiddleware = roleRouteMiddleware(func(role string) bool { return role == models.ADMIN_ROLE })

	editorRouteMiddleware = roleRouteMiddleware(models.CanEdit)
)

// editorRoute gates a single handler to admins and sub-admins.
func editorRoute(handler http.HandlerFunc) http.Handler {
	return editorRouteMiddleware(handler)
}
