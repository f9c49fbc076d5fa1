// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, request parsing and the common middleware stack.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteCreated(w, resource)
//	httputil.WriteUnauthorized(w) // 401 with a Basic challenge
//	httputil.WriteForbidden(w, "forbidden")
//
// Every error body has the shape {"error": "..."}.
//
// # Request Parsing
//
//	var req RegisterRequest
//	if err := httputil.ParseJSON(r, &req); err != nil {
//		httputil.WriteBadRequest(w, err.Error())
//		return
//	}
//
// ParseOptionalJSON is for bodies that may legitimately be absent.
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(logger, false),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware([]string{"*"}),
//	)(router)
package httputil
