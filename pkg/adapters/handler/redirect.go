package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

// RedirectHandler intercepts tracker requests ahead of the rest of the router.
type RedirectHandler struct {
	resolver     ports.LinkResolver
	pathPrefix   string // "/<prefix>/"
	queryParam   string
	clickTimeout time.Duration
	logger       *slog.Logger
}

func NewRedirectHandler(resolver ports.LinkResolver, cfg *config.Config, logger *slog.Logger) *RedirectHandler {
	timeout := cfg.ClickTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedirectHandler{
		resolver:     resolver,
		pathPrefix:   "/" + config.NormalizePrefix(cfg.TrackerPrefix) + "/",
		queryParam:   cfg.TrackerQueryParam,
		clickTimeout: timeout,
		logger:       logger,
	}
}

// Wrap serves tracker requests and hands everything else to next untouched.
func (h *RedirectHandler) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := h.ExtractToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		h.serveToken(w, r, token)
	})
}

// ExtractToken pulls a token out of GET/HEAD /<prefix>/<token> or, on the
// site root only, the legacy query parameter form.
func (h *RedirectHandler) ExtractToken(r *http.Request) (string, bool) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return "", false
	}
	if rest, found := strings.CutPrefix(r.URL.Path, h.pathPrefix); found && rest != "" {
		return rest, true
	}
	if h.queryParam != "" && r.URL.Path == "/" {
		if token := r.URL.Query().Get(h.queryParam); token != "" {
			return token, true
		}
	}
	return "", false
}

func (h *RedirectHandler) serveToken(w http.ResponseWriter, r *http.Request, token string) {
	link, err := h.resolver.Resolve(r.Context(), token)
	if err != nil {
		if domain.IsNotFound(err) {
			http.Error(w, "Tracker link not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(r.Context(), "resolve tracker link", "token", token, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// HEAD is answered like GET but is not a visit; link previewers send it.
	if r.Method == http.MethodHead {
		http.Redirect(w, r, link.DestinationURL, http.StatusFound)
		return
	}

	// The visitor hanging up must not lose the click.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.clickTimeout)
	defer cancel()
	if err := h.resolver.RecordClick(ctx, link.Token); err != nil {
		h.logger.WarnContext(r.Context(), "click not recorded", "token", link.Token, "error", err)
	}

	http.Redirect(w, r, link.DestinationURL, http.StatusFound)
}
