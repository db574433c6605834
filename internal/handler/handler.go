package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"zupgo/internal/batch"
	"zupgo/internal/models"
	"zupgo/internal/report"
	"zupgo/internal/storage"
	"zupgo/internal/utils"
)

// Runner is the part of batch.Coordinator the routes need.
type Runner interface {
	Run(ctx context.Context, req models.BatchRequest) (*models.BatchResult, error)
	Dir(title string) (string, error)
}

// Per-URL allowance when sizing the POST /zup body limit from the batch limit.
const (
	urlBytes     = 8 << 10
	requestSlack = 1 << 20
)

func maxRequestBytes(maxBatchSize int) int64 {
	if maxBatchSize <= 0 {
		maxBatchSize = 10000
	}
	return int64(maxBatchSize)*urlBytes + requestSlack
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// BatchHandler serves POST /zup. The batch runs under ctx, the server's
// lifetime context, so a client that disconnects does not abandon it.
// Per-URL failures never change the status code.
func BatchHandler(ctx context.Context, runner Runner, maxBatchSize int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes(maxBatchSize))

		var req models.BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
					"error": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
				})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if maxBatchSize > 0 && len(req.URLs) > maxBatchSize {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("batch has %d urls, limit is %d", len(req.URLs), maxBatchSize),
			})
			return
		}

		slog.Info("Batch received", "title", req.Title, "urls", len(req.URLs), "remote_addr", r.RemoteAddr)

		_, err := runner.Run(ctx, req)
		if err != nil {
			var de *batch.DirectoryError
			status := http.StatusInternalServerError
			if errors.As(err, &de) && errors.Is(de.Err, utils.ErrEmptyCollection) {
				status = http.StatusBadRequest
			}
			slog.Error("Batch aborted", "title", req.Title, "error", err)
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "%s\ncompleted", req.Title)
	}
}

// FailuresHandler serves GET /zup/{title}/failures from the report artifact.
func FailuresHandler(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title := chi.URLParam(r, "title")
		dir, err := runner.Dir(title)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		rep, err := report.Read(dir)
		if errors.Is(err, report.ErrNoReport) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no failures recorded"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read report"})
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// HistoryHandler serves GET /batches, newest first.
func HistoryHandler(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, store.List())
	}
}

// LastBatchHandler serves GET /batches/{title}: the latest recorded run of
// that collection.
func LastBatchHandler(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title, err := url.PathUnescape(chi.URLParam(r, "title"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid title"})
			return
		}
		summary, ok := store.LastFor(title)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no batch recorded"})
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// NewRouter wires every route of the service.
func NewRouter(ctx context.Context, runner Runner, store *storage.Storage, ws http.HandlerFunc, maxBatchSize int) chi.Router {
	r := chi.NewRouter()
	r.Post("/zup", BatchHandler(ctx, runner, maxBatchSize))
	r.Get("/zup/{title}/failures", FailuresHandler(runner))
	r.Get("/batches", HistoryHandler(store))
	r.Get("/batches/{title}", LastBatchHandler(store))
	if ws != nil {
		r.Get("/ws", ws)
	}
	return r
}
