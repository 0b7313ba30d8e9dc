package backend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Y3rnur/sitesrv/backend/store"
	"github.com/Y3rnur/sitesrv/backend/ws"
)

// NewAdminMux serves the operator API. pool and hub may be nil when the
// corresponding backend is not configured.
func NewAdminMux(log *zap.Logger, auth Auth, pool *pgxpool.Pool, hub *ws.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "API Status: OK")
	})

	mux.Handle("GET /api/access", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			http.Error(w, "access store not configured", http.StatusServiceUnavailable)
			return
		}
		limit := 0
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		subject := SubjectFromCtx(r.Context())
		events, err := store.GetRecentAccessEvents(r.Context(), pool, limit)
		if err != nil {
			log.Error("list access events", zap.String("subject", subject), zap.Error(err))
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if events == nil {
			events = []store.AccessEvent{}
		}
		log.Info("access events listed", zap.String("subject", subject), zap.Int("count", len(events)))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(events)
	})))

	if hub != nil {
		mux.Handle("GET /ws/access", auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("live feed requested", zap.String("subject", SubjectFromCtx(r.Context())), zap.String("remote", r.RemoteAddr))
			hub.ServeWS(w, r)
		})))
	}

	return mux
}
