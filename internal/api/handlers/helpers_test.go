package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/ecoenergy/eco-energy/internal/api/middleware"
	"github.com/ecoenergy/eco-energy/internal/testutil"
	"github.com/ecoenergy/eco-energy/pkg/util"
	"github.com/go-chi/chi/v5"
)

func testLogger() *slog.Logger {
	return util.NewLoggerTo(io.Discard, "test")
}

// protectedRouter returns a router whose routes require a token and carry
// the caller's access scope, as in production.
func protectedRouter(tc *testutil.TestSetup) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Auth(tc.JWTService))
	r.Use(middleware.Scope(tc.DB))
	return r
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
