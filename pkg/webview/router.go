package webview

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/i18n"
	"github.com/goliatone/go-settings/pkg/overlay"
)

const maxBodySize = 1 << 20

// Overlay is the controller toggled over HTTP.
type Overlay interface {
	Toggle(ctx context.Context) error
	State() overlay.State
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RouterOption configures Router.
type RouterOption func(*routerConfig)

type routerConfig struct {
	translations *i18n.Registry
	middlewares  []func(http.Handler) http.Handler
}

// WithTranslations serves the registry under /api/i18n/{locale}.
func WithTranslations(r *i18n.Registry) RouterOption {
	return func(c *routerConfig) { c.translations = r }
}

// WithMiddleware appends router middleware, for example request logging.
func WithMiddleware(mw ...func(http.Handler) http.Handler) RouterOption {
	return func(c *routerConfig) { c.middlewares = append(c.middlewares, mw...) }
}

// Router serves the websocket endpoint and a small JSON API over manager.
// ov may be nil, in which case the toggle route is not mounted.
func Router(hub *Hub, manager *settings.Manager, ov Overlay, opts ...RouterOption) http.Handler {
	var cfg routerConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cfg.middlewares...)

	r.Handle("/ws", hub)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": hub.Clients()})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/modules", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, manager.Registry().Descriptors())
		})
		r.Get("/schema/{module}", func(w http.ResponseWriter, req *http.Request) {
			d, ok := manager.Registry().Lookup(chi.URLParam(req, "module"))
			if !ok {
				writeError(w, http.StatusNotFound, "unknown module")
				return
			}
			writeJSON(w, http.StatusOK, d.Schema())
		})
		r.Get("/settings/{module}", func(w http.ResponseWriter, req *http.Request) {
			module := chi.URLParam(req, "module")
			if req.URL.Query().Get("effective") != "" {
				writeJSON(w, http.StatusOK, manager.Effective(req.Context(), module))
				return
			}
			writeJSON(w, http.StatusOK, manager.GetAll(req.Context(), module))
		})
		r.Get("/settings/{module}/{key}", func(w http.ResponseWriter, req *http.Request) {
			trace := manager.Explain(req.Context(), chi.URLParam(req, "module"), chi.URLParam(req, "key"))
			writeJSON(w, http.StatusOK, trace)
		})
		r.Put("/settings/{module}/{key}", func(w http.ResponseWriter, req *http.Request) {
			putSetting(w, req, manager)
		})
		if cfg.translations != nil {
			r.Get("/i18n", func(w http.ResponseWriter, req *http.Request) {
				writeJSON(w, http.StatusOK, cfg.translations.Table(cfg.translations.Fallback()))
			})
			r.Get("/i18n/{locale}", func(w http.ResponseWriter, req *http.Request) {
				writeJSON(w, http.StatusOK, cfg.translations.Table(chi.URLParam(req, "locale")))
			})
		}
		if ov != nil {
			r.Post("/overlay/toggle", func(w http.ResponseWriter, req *http.Request) {
				if err := ov.Toggle(req.Context()); err != nil {
					writeError(w, http.StatusConflict, err.Error())
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"state": ov.State().String()})
			})
		}
	})
	return r
}

func putSetting(w http.ResponseWriter, req *http.Request, manager *settings.Manager) {
	module, key := chi.URLParam(req, "module"), chi.URLParam(req, "key")
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value, err := settings.ParseValue(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON value")
		return
	}
	if err := manager.Set(req.Context(), module, key, value); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, manager.GetAll(req.Context(), module))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, settings.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settings.ErrInvalidModule), errors.Is(err, settings.ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Code: status, Message: message})
}
