package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/evetools/slacksync/internal/auth"
	"github.com/evetools/slacksync/internal/jobs"
	"github.com/evetools/slacksync/internal/obs"
	syncpkg "github.com/evetools/slacksync/internal/sync"
)

// ReadyProbe pings the backing database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Syncer enqueues a reconciliation for one Slack user.
type Syncer interface {
	EnqueueSync(ctx context.Context, slackUserID string) (jobID string, refusal jobs.Refusal, err error)
}

// API is the inspection and trigger surface over the sync engine.
type API struct {
	mux          *http.ServeMux
	readyProbe   ReadyProbe
	version      string
	cache        syncpkg.SnapshotCache
	associations syncpkg.AssociationStore
	syncer       Syncer
	verifier     *auth.Verifier
	logger       obs.Logger
}

func New(rp ReadyProbe, version string, snapshots syncpkg.SnapshotCache, associations syncpkg.AssociationStore, syncer Syncer, verifier *auth.Verifier, logger obs.Logger) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		cache:        snapshots,
		associations: associations,
		syncer:       syncer,
		verifier:     verifier,
		logger:       obs.OrNop(logger),
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("GET /v1/users/{id}/conversations", a.UserConversations)
	a.mux.HandleFunc("POST /v1/sync/{id}", a.TriggerSync)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = RequestID(h)
	h = Logging(h, a.logger)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "slacksync",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// UserConversations returns the cached channel membership for one Slack
// user, fetching from the platform on a cache miss.
func (a *API) UserConversations(w http.ResponseWriter, r *http.Request) {
	slackUserID := r.PathValue("id")
	if slackUserID == "" {
		respondError(w, http.StatusBadRequest, "missing user id")
		return
	}

	snapshot, err := a.cache.GetOrFetch(r.Context(), slackUserID)
	if err != nil {
		a.logger.Error("snapshot lookup failed", map[string]any{
			"slack_id": slackUserID,
			"error":    err.Error(),
		})
		respondError(w, http.StatusBadGateway, "snapshot unavailable")
		return
	}

	channels := append([]string(nil), snapshot.Conversations...)
	sort.Strings(channels)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       snapshot.ID,
		"name":       snapshot.Name,
		"channels":   channels,
		"fetched_at": snapshot.FetchedAt.Format(time.RFC3339),
	})
}

// TriggerSync enqueues a reconciliation for one Slack user. A duplicate
// request while a job is active returns the existing job id; refusals map
// to 409 rather than 5xx because they are expected operating conditions.
func (a *API) TriggerSync(w http.ResponseWriter, r *http.Request) {
	slackUserID := r.PathValue("id")
	if slackUserID == "" {
		respondError(w, http.StatusBadRequest, "missing user id")
		return
	}

	if _, err := a.associations.FindBySlackID(r.Context(), slackUserID); err != nil {
		if errors.Is(err, syncpkg.ErrNoAssociation) {
			respondError(w, http.StatusNotFound, "no association for slack user")
			return
		}
		respondError(w, http.StatusInternalServerError, "association lookup failed")
		return
	}

	jobID, refusal, err := a.syncer.EnqueueSync(r.Context(), slackUserID)
	if err != nil {
		a.logger.Error("sync enqueue failed", map[string]any{
			"slack_id": slackUserID,
			"error":    err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	if refusal != jobs.RefusalNone {
		writeJSON(w, http.StatusConflict, map[string]any{
			"refusal": string(refusal),
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"user":   slackUserID,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
