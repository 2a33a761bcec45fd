package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/JonMunkholm/ovdsync/internal/logging"
	"github.com/google/uuid"
)

// Upstream auth headers. Authentication itself happens in front of this
// service; these carry the resolved caller.
const (
	headerTraceID = "X-Trace-ID"
	headerUserID  = "X-User-ID"
	headerEmail   = "X-User-Email"
	headerRole    = "X-User-Role"
	headerOrgID   = "X-Organization-ID"
)

// maxTraceIDLen bounds client-supplied trace ids before they reach logs.
const maxTraceIDLen = 128

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already processed by TrustedRealIP
	ua := r.Header.Get("User-Agent")
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, ua)
	return ctx
}

// traceID reuses the caller's X-Trace-ID or mints one, stores it for
// logging and echoes it on the response.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerTraceID))
		if id == "" || len(id) > maxTraceIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(headerTraceID, id)
		ctx := logging.ContextWithTraceID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorIdentity reads the caller from the upstream auth headers. Requests
// that change state must name a user.
func actorIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := core.Actor{
			ID:             strings.TrimSpace(r.Header.Get(headerUserID)),
			Email:          strings.TrimSpace(r.Header.Get(headerEmail)),
			Role:           strings.TrimSpace(r.Header.Get(headerRole)),
			OrganizationID: strings.TrimSpace(r.Header.Get(headerOrgID)),
		}
		if actor.ID == "" && isMutating(r.Method) {
			respondStatus(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "user identity required")
			return
		}

		ctx := WithRequestMetadata(r.Context(), r)
		if actor.ID != "" {
			ctx = core.ContextWithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// requireActor returns the request's actor or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (core.Actor, bool) {
	actor, ok := core.ActorFromContext(r.Context())
	if !ok {
		respondStatus(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "user identity required")
	}
	return actor, ok
}
