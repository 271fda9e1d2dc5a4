package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// The API is read-only: status, logs and event streams. Browsers may read it
// from any origin; credentials still go through basic auth.
const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, HEAD, OPTIONS"
	corsAllowHeaders = "Authorization, Accept, Cache-Control, Last-Event-ID"
	corsMaxAge       = "600"
)

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
}

// corsMiddleware adds CORS headers to every API response.
func corsMiddleware(ctx huma.Context, next func(huma.Context)) {
	ctx.SetHeader("Access-Control-Allow-Origin", corsAllowOrigin)
	ctx.SetHeader("Access-Control-Allow-Methods", corsAllowMethods)
	ctx.SetHeader("Access-Control-Allow-Headers", corsAllowHeaders)
	ctx.SetHeader("Access-Control-Max-Age", corsMaxAge)
	next(ctx)
}

// handlePreflight answers OPTIONS for every path. Huma registers no OPTIONS
// operations, so preflights never reach its middleware.
func handlePreflight(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header())
		w.WriteHeader(http.StatusNoContent)
	})
}
