package backend

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Y3rnur/sitesrv/backend/store"
)

// Recorder receives one event per served request.
type Recorder interface {
	Record(ev store.AccessEvent)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LoggingMiddleware tags each request with an X-Request-ID, logs it once
// served and passes the resulting event to recorders. Recorders run on the
// request path; slow sinks belong behind a RecordQueue. A handler that
// aborts is still logged, with status 0.
func LoggingMiddleware(log *zap.Logger, next http.Handler, recorders ...Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New()
		w.Header().Set("X-Request-ID", id.String())
		rec := &responseRecorder{ResponseWriter: w}
		start := time.Now()

		defer func() {
			ev := store.AccessEvent{
				ID:         id,
				Method:     r.Method,
				Path:       r.URL.Path,
				Status:     rec.status,
				Bytes:      rec.bytes,
				Duration:   time.Since(start),
				RemoteAddr: r.RemoteAddr,
				CreatedAt:  start.UTC(),
			}
			log.Info("request",
				zap.Stringer("id", ev.ID),
				zap.String("method", ev.Method),
				zap.String("path", ev.Path),
				zap.Int("status", ev.Status),
				zap.Int64("bytes", ev.Bytes),
				zap.Duration("duration", ev.Duration),
				zap.String("remote", ev.RemoteAddr),
			)
			for _, rc := range recorders {
				rc.Record(ev)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}
