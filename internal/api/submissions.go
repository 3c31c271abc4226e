package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cometrelay/internal/model"
	"cometrelay/internal/service"

	"github.com/go-chi/chi/v5"
)

func (d Dependencies) listSubmissions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	var statusPtr *string
	if status != "" {
		statusPtr = &status
	}

	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}

	rows, err := d.DB.Queries.ListSubmissions(r.Context(), statusPtr, limit, offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "query_failed", err.Error(), d.Log)
		return
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, s := range rows {
		item := map[string]interface{}{
			"id":        s.ID,
			"formName":  s.FormName,
			"status":    s.Status,
			"createdAt": s.CreatedAt.Format(time.RFC3339),
		}
		if s.Action != nil {
			item["action"] = *s.Action
		}
		if s.Error != nil {
			item["error"] = *s.Error
		}
		items = append(items, item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}

func (d Dependencies) getSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, err := d.Submissions.GetSubmission(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Submission not found", d.Log)
		return
	}

	rows, err := d.DB.Queries.ListDeliveryAttempts(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "query_failed", err.Error(), d.Log)
		return
	}
	attempts := make([]model.DeliveryAttempt, 0, len(rows))
	for _, a := range rows {
		attempts = append(attempts, service.DBDeliveryAttemptToModel(a))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"submission": sub,
		"deliveries": attempts,
	})
}

func (d Dependencies) replaySubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the submission exists and has something to redeliver before
	// queueing anything.
	sub, err := d.Submissions.GetSubmission(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Submission not found", d.Log)
		return
	}
	if sub.Action == "" || len(sub.Payload) == 0 {
		WriteError(w, http.StatusConflict, "no_payload", "Submission has no recorded payload to redeliver", d.Log)
		return
	}

	if d.JobClient != nil {
		if err := d.JobClient.EnqueueReplay(id); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "enqueue_failed", "Failed to queue replay", d.Log)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
		return
	}

	result, err := d.Submissions.Redeliver(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "replay_failed", err.Error(), d.Log)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     result.Status,
		"submission": result,
	})
}

func (d Dependencies) listRoutes(w http.ResponseWriter, r *http.Request) {
	items := make([]map[string]interface{}, 0)
	for _, rt := range d.Routes.All() {
		items = append(items, map[string]interface{}{
			"form":           rt.Form,
			"action":         string(rt.Action),
			"requiredFields": rt.RequiredFields,
			"notifyOnly":     rt.NotifyOnly,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}
