// Package httpapi serves a small local status API: the live state of open
// match sessions and the stored match history.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tapbattle/internal/history"
	"github.com/DoyleJ11/tapbattle/internal/hub"
	"github.com/DoyleJ11/tapbattle/internal/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func GetSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := h.Get(r.Context(), chi.URLParam(r, "roomID"))
		if s == nil {
			writeError(w, http.StatusNotFound, "no session for room")
			return
		}
		writeJSON(w, http.StatusOK, types.NewSessionView(s.Snapshot()))
	}
}

func ListHistory(store history.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxHistoryLimit)
		}
		records, err := store.ListRecent(r.Context(), limit)
		if err != nil {
			internalError(w, log, "list history", err)
			return
		}
		writeJSON(w, http.StatusOK, types.NewRecordViews(records))
	}
}

func PlayerHistory(store history.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.ListByPlayer(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			internalError(w, log, "list player history", err)
			return
		}
		writeJSON(w, http.StatusOK, types.NewRecordViews(records))
	}
}

func PlayerWins(store history.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		wins, err := store.WinCount(r.Context(), name)
		if err != nil {
			internalError(w, log, "count wins", err)
			return
		}
		writeJSON(w, http.StatusOK, types.WinsView{PlayerName: name, Wins: wins})
	}
}

func ClearHistory(store history.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteAll(r.Context()); err != nil {
			internalError(w, log, "clear history", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteRecord(store history.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid record id")
			return
		}
		err = store.Delete(r.Context(), history.Record{ID: id})
		switch {
		case errors.Is(err, history.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case err != nil:
			internalError(w, log, "delete record", err)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func internalError(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	log.Error(op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorMessage{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
