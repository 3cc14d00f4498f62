package httpsrv

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shortenlabs/shortener/cache"
	"github.com/shortenlabs/shortener/cmn"
	cerrors "github.com/shortenlabs/shortener/cmn/errors"
	"github.com/shortenlabs/shortener/redirect"
)

type handlers struct {
	deps    Deps
	metrics *metrics
	log     *zap.SugaredLogger
}

func authUnauthorized() error { return cerrors.Unauthorized() }

// ---- GET /{code} and GET /health ----

func (h *handlers) redirectCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	link, err := h.deps.Redirect.Resolve(r.Context(), code)
	if err != nil {
		h.metrics.redirectsTotal.WithLabelValues("not_found").Inc()
		h.deps.NotFound.write(w)
		return
	}

	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
	h.metrics.redirectsTotal.WithLabelValues("served").Inc()

	ip := redirect.ClientIP(r, h.deps.TrustedProxyHeader)
	queued := h.deps.Redirect.RecordAsync(code, redirect.RequestMeta{
		IP:        ip,
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})
	if !queued {
		h.metrics.eventsDropped.Inc()
	}
}

func (p NotFoundPage) write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", p.ContentType)
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(p.Body)
}

// healthPingBudget bounds the storage/cache pings the health handler
// performs so a slow backend never turns a liveness probe into a hang.
const healthPingBudget = 2 * time.Second

func cacheStatus(ctx context.Context, deps Deps) string {
	if !deps.CacheEnabled {
		return "disabled"
	}
	if err := cache.Ping(ctx, deps.Cache); err != nil {
		return "degraded"
	}
	return "ok"
}

type healthBody struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Cache   string `json:"cache"`
}

// health is a liveness probe that pings storage/cache with a short
// budget rather than answering a bare 200, without ever blocking past
// its own deadline.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingBudget)
	defer cancel()

	storageStatus := "ok"
	if err := h.deps.Store.Ping(ctx); err != nil {
		storageStatus = "degraded"
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "ok", Storage: storageStatus, Cache: cacheStatus(ctx, h.deps)})
}

// ---- POST /api/account/login, logout, current ----

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Auto     bool   `json:"auto,omitempty"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	session, err := h.deps.Auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: session.Token})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.deps.Auth.Logout(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

type currentUserResponse struct {
	Name       string `json:"name"`
	AuthMethod string `json:"auth_method"`
}

// currentUser answers GET /api/users/current, echoing which auth
// scheme the request arrived under.
func (h *handlers) currentUser(w http.ResponseWriter, r *http.Request) {
	method, _ := r.Context().Value(authMethodKey{}).(string)
	writeJSON(w, http.StatusOK, currentUserResponse{Name: "admin", AuthMethod: method})
}

// ---- /api/shortens ----

type createLinkRequest struct {
	OriginalURL string `json:"original_url"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (h *handlers) createLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	link, err := h.deps.Links.Create(r.Context(), req.OriginalURL, req.Code, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (h *handlers) getLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.deps.Links.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *handlers) listLinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parsePage(q)
	filter := cmn.LinkFilter{Code: q.Get("code"), OriginalURL: q.Get("original_url")}
	if s := q.Get("status"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			st := cmn.Status(n)
			filter.Status = &st
		}
	}

	rows, total, err := h.deps.Links.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeList(w, rows, cmn.NewMeta(page, len(rows), total))
}

type updateLinkRequest struct {
	OriginalURL *string     `json:"original_url,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *cmn.Status `json:"status,omitempty"`
}

func (h *handlers) updateLink(w http.ResponseWriter, r *http.Request) {
	var req updateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	patch := cmn.LinkPatch{OriginalURL: req.OriginalURL, Description: req.Description, Status: req.Status}
	link, err := h.deps.Links.Update(r.Context(), chi.URLParam(r, "code"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *handlers) deleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Links.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type batchDeleteResponse struct {
	Count int `json:"count"`
}

func (h *handlers) batchDeleteLinks(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	n, err := h.deps.Links.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchDeleteResponse{Count: n})
}

// ---- /api/histories ----

func (h *handlers) listHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parsePage(q)
	filter := cmn.EventFilter{Code: q.Get("code"), IP: q.Get("ip_address")}

	rows, total, err := h.deps.History.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeList(w, rows, cmn.NewMeta(page, len(rows), total))
}

func (h *handlers) batchDeleteHistory(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	n, err := h.deps.History.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batchDeleteResponse{Count: n})
}

// ---- shared query parsing ----

// parsePage applies the pagination defaults (page=1, per_page=10,
// sort_by=created_at, order=desc); Normalize (cmn.Page) fills anything
// left unset or out of range.
func parsePage(q interface{ Get(string) string }) cmn.Page {
	page := atoiDefault(q.Get("page"), 1)
	perPage := atoiDefault(q.Get("per_page"), 10)
	order := cmn.SortOrder(q.Get("order"))
	return cmn.Page{Page: page, PerPage: perPage, SortBy: q.Get("sort_by"), Order: order}.Normalize("created_at")
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
