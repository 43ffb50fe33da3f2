package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"invoicer/internal/auth"
	"invoicer/internal/routing"
	"invoicer/internal/workspace"
)

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// edge runs on every navigable request with nothing but the request cookies.
// It never resolves tenants; the org header it sets is informational.
func (s *Server) edge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if routing.Bypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		_, hasCookie := auth.AuthCookie(r, s.cfg.AuthCookieName)
		d := routing.DecideEdge(hasCookie, r.URL.Path)
		s.obs.ObserveDecision(stageEdge, d)

		switch d.Action {
		case routing.ActionLogin:
			http.Redirect(w, r, s.loginURL(r), http.StatusTemporaryRedirect)
		case routing.ActionRedirect:
			http.Redirect(w, r, d.Location, http.StatusTemporaryRedirect)
		default:
			if d.OrgID != "" {
				w.Header().Set("X-Organization-Id", d.OrgID)
			}
			next.ServeHTTP(w, r)
		}
	})
}

// attachWorkspace puts the caller's workspace and forwarded credentials on
// the request context. Requests without the auth cookie pass through bare.
// The workspace snapshot is persisted right before the response header goes
// out.
func (s *Server) attachWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, ok := auth.AuthCookie(r, s.cfg.AuthCookieName)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ws := s.registry.Acquire(r, workspace.KeyFromCookie(cookie.Value))
		ctx := auth.WithCredentials(r.Context(), auth.Credentials{Cookie: cookie})
		ctx = workspace.WithWorkspace(ctx, ws)
		r = r.WithContext(ctx)

		pw := &persistingWriter{ResponseWriter: w}
		pw.save = func() {
			if err := s.registry.Save(w, r, ws); err != nil {
				s.log.Warn("persisting workspace state failed", zap.Error(err))
			}
		}
		next.ServeHTTP(pw, r.WithContext(withPersistence(ctx, pw)))
		pw.flush()
	})
}

type persistKey struct{}

func withPersistence(ctx context.Context, pw *persistingWriter) context.Context {
	return context.WithValue(ctx, persistKey{}, pw)
}

// skipPersistence stops the current request from writing workspace state,
// e.g. after the state was deleted.
func skipPersistence(ctx context.Context) {
	if pw, ok := ctx.Value(persistKey{}).(*persistingWriter); ok {
		pw.once.Do(func() {})
	}
}

// persistingWriter calls save once, before the first header or body write.
type persistingWriter struct {
	http.ResponseWriter
	once sync.Once
	save func()
}

func (w *persistingWriter) flush() {
	w.once.Do(w.save)
}

func (w *persistingWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *persistingWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

// requireShell runs the auth and tenant guards and lets the page render only
// on an allow decision.
func (s *Server) requireShell(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, ok := workspace.FromContext(r.Context())
		if !ok {
			http.Redirect(w, r, s.loginURL(r), http.StatusFound)
			return
		}

		d := s.shell.Enter(r.Context(), ws, r.URL.Path)
		switch d.Action {
		case routing.ActionAllow:
			next.ServeHTTP(w, r)
		case routing.ActionLogin:
			http.Redirect(w, r, s.loginURL(r), http.StatusFound)
		case routing.ActionRedirect:
			http.Redirect(w, r, d.Location, http.StatusFound)
		default:
			s.writeError(w, http.StatusInternalServerError, errors.New("navigation did not settle"))
		}
	})
}

func (s *Server) rateLimitMiddleware() func(http.Handler) http.Handler {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := "ip:" + clientIPAddress(r.RemoteAddr)
			if cookie, ok := auth.AuthCookie(r, s.cfg.AuthCookieName); ok {
				key = "ws:" + workspace.KeyFromCookie(cookie.Value)
			}

			if !s.limiter.Allow(key, time.Now()) {
				s.writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
