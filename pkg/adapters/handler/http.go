package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/config"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

type HTTPHandler struct {
	service ports.LinkService
	cfg     *config.Config
	logger  *slog.Logger
}

func NewHTTPHandler(service ports.LinkService, cfg *config.Config, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{service: service, cfg: cfg, logger: logger}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	DestinationURL string `json:"destination_url"`
}

// LinkResponse is a stored link plus its public tracker address.
type LinkResponse struct {
	domain.TrackerLink
	TrackerURL string `json:"tracker_url"`
}

func (h *HTTPHandler) toResponse(link domain.TrackerLink) LinkResponse {
	return LinkResponse{TrackerLink: link, TrackerURL: h.cfg.TrackerURL(link.Token)}
}

// Create Link
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	link, err := h.service.CreateLink(r.Context(), req.DestinationURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(*link))
}

// List Links
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	links, err := h.service.ListLinks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		data = append(data, h.toResponse(link))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
}

// Get a single link by token or id:<n>
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.GetLink(r.Context(), r.PathValue("ref"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(*link))
}

// Delete Link
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLink(r.Context(), r.PathValue("ref")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTokenSpaceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "admin request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
