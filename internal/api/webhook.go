package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"cometrelay/internal/model"

	"go.uber.org/zap"
)

// formWebhook receives a form-submission event from the tracking front end.
// The trigger discards response bodies and never acts on failures, so this
// handler acknowledges quickly and the actual run happens on the worker.
func (d Dependencies) formWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body", d.Log)
		return
	}

	// Manual test invocations fire the trigger with no event; treat those
	// as a successful no-op.
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ignored"})
		return
	}

	if err := d.Validator.ValidateEvent(body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_event", err.Error(), d.Log)
		return
	}

	if d.JobClient != nil {
		if err := d.JobClient.EnqueueProcess(body); err != nil {
			// The trigger ignores outcomes either way; log loudly and let
			// the operator replay from the audit trail.
			d.Log.Error("Failed to enqueue submission", zap.Error(err))
			WriteError(w, http.StatusServiceUnavailable, "enqueue_failed", "Failed to queue submission", d.Log)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
		return
	}

	// No queue configured: run the coordinator inline, blocking the caller
	// through the propagation delay. Used for local runs and tests.
	var event model.InboundEvent
	if err := json.Unmarshal(body, &event); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_event", "Failed to decode event", d.Log)
		return
	}

	sub, err := d.Submissions.Process(r.Context(), &event)
	if err != nil {
		// Extraction failures abort the run; the trigger still gets a 200
		// because it never looks at the response.
		d.Log.Warn("Inline submission run failed", zap.Error(err))
	}

	resp := map[string]interface{}{"status": "processed"}
	if sub != nil {
		resp["submissionId"] = sub.ID
		resp["submissionStatus"] = sub.Status
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
