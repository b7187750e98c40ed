package http

import (
	"log/slog"
	"net/http"

	"classroom-poll-service/internal/app"
	"golang.org/x/sync/singleflight"
)

// HistoryHandler serves GET /history. Concurrent requests share one snapshot.
type HistoryHandler struct {
	classroom *app.Classroom
	log       *slog.Logger
	sf        singleflight.Group
}

func NewHistoryHandler(classroom *app.Classroom, logger *slog.Logger) *HistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryHandler{classroom: classroom, log: logger}
}

func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err, _ := h.sf.Do("history", func() (interface{}, error) {
		return app.EncodeHistory(h.classroom.History())
	})
	if err != nil {
		h.log.Error("encode history", "error", err)
		http.Error(w, "failed to encode history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body.([]byte))
}
