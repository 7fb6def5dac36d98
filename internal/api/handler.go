// Package api is the daemon's HTTP surface: chi handlers over the sync
// session and a client for them.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/followtrack/internal/ledger"
	"github.com/matheus3301/followtrack/internal/metrics"
	"github.com/matheus3301/followtrack/internal/relation"
	"github.com/matheus3301/followtrack/internal/source"
	"github.com/matheus3301/followtrack/internal/store"
	intsync "github.com/matheus3301/followtrack/internal/sync"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RunLister reads sync history. *store.DB implements it.
type RunLister interface {
	ListRuns(ctx context.Context, profile string, limit int) ([]store.SyncRun, error)
}

// Deps are the handler collaborators. Runs, Metrics and Logger are optional.
type Deps struct {
	Profile string
	Session *intsync.Session
	Engine  *intsync.Engine
	Runs    RunLister
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// TokenResponse carries an undo token for a reversible mutation. OK is
// false, with no token, when the target did not exist.
type TokenResponse struct {
	OK    bool         `json:"ok"`
	Token ledger.Token `json:"token,omitempty"`
}

// OKResponse reports whether a mutation changed anything.
type OKResponse struct {
	OK bool `json:"ok"`
}

// CountResponse reports how many entities a mutation changed.
type CountResponse struct {
	Count int `json:"count"`
}

// QueuedResponse answers an asynchronous sync request.
type QueuedResponse struct {
	Queued bool `json:"queued"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Profile string `json:"profile"`
	Status  string `json:"status"`
	Syncing bool   `json:"syncing"`
}

// NewHandler builds the router.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth(deps))
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/view", handleView(deps))
		r.Get("/runs", handleRuns(deps))
		r.Post("/sync", handleSync(deps))
		r.Post("/following/{id}/unfollow", handleUnfollow(deps))
		r.Post("/undo/{token}", handleUndo(deps))
		r.Post("/undo/{token}/dismiss", handleDismiss(deps))
		r.Post("/notifications/read-all", handleReadAll(deps))
		r.Post("/notifications/{id}/read", handleRead(deps))
		r.Delete("/notifications/{id}", handleDeleteNotification(deps))
	})
	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Profile: deps.Profile,
			Status:  string(deps.Session.Status().Current()),
			Syncing: deps.Session.Syncing(),
		})
	}
}

// handleView returns the session view; ?order=newest re-sorts the
// relationship lists by follow time.
func handleView(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := deps.Session.View()
		if r.URL.Query().Get("order") == "newest" {
			for _, users := range []*[]relation.UserRecord{&v.Followers, &v.Following, &v.Mutuals, &v.NotFollowingBack, &v.NotFollowedBack} {
				*users = relation.SortNewestFirst(*users)
			}
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs := []store.SyncRun{}
		if deps.Runs != nil {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			got, err := deps.Runs.ListRuns(r.Context(), deps.Profile, limit)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "failed to list runs: %v", err)
				return
			}
			if got != nil {
				runs = got
			}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// handleSync runs a sync and waits for it, or with ?wait=false queues one
// on the engine.
func handleSync(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("wait") == "false" && deps.Engine != nil {
			writeJSON(w, http.StatusAccepted, QueuedResponse{Queued: deps.Engine.Trigger()})
			return
		}

		res, err := deps.Session.Sync(r.Context())
		var fe *source.FetchError
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res)
		case errors.Is(err, intsync.ErrSyncInProgress):
			httpError(w, http.StatusConflict, "%v", err)
		case errors.As(err, &fe):
			httpError(w, http.StatusBadGateway, "%s", fe.Reason)
		case errors.Is(err, context.Canceled):
			httpError(w, http.StatusServiceUnavailable, "sync cancelled")
		default:
			deps.Logger.Error("sync request failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "sync failed")
		}
	}
}

func handleUnfollow(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		tok, ok := deps.Session.RemoveFollowing(r.Context(), id)
		writeJSON(w, http.StatusOK, TokenResponse{OK: ok, Token: tok})
	}
}

func handleUndo(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := ledger.Token(chi.URLParam(r, "token"))
		writeJSON(w, http.StatusOK, OKResponse{OK: deps.Session.Undo(r.Context(), tok)})
	}
}

func handleDismiss(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := ledger.Token(chi.URLParam(r, "token"))
		writeJSON(w, http.StatusOK, OKResponse{OK: deps.Session.Dismiss(tok)})
	}
}

func handleRead(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := notificationID(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: deps.Session.MarkRead(r.Context(), id)})
	}
}

func handleReadAll(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, CountResponse{Count: deps.Session.MarkAllRead(r.Context())})
	}
}

func handleDeleteNotification(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := notificationID(w, r)
		if !ok {
			return
		}
		tok, ok := deps.Session.DeleteNotification(r.Context(), id)
		writeJSON(w, http.StatusOK, TokenResponse{OK: ok, Token: tok})
	}
}

func notificationID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid notification id %q", raw)
		return 0, false
	}
	return id, true
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, ErrorResponse{Error: fmt.Sprintf(format, args...)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}
