package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cometrelay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher() *Dispatcher {
	return New(zap.NewNop(), 5*time.Second)
}

func TestDeliver_ProcessingTarget(t *testing.T) {
	var gotBody map[string]string
	var gotContentType, gotAPIKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAPIKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	target := model.DeliveryTarget{Kind: model.TargetPrimary, URL: srv.URL, APIKey: "secret-key"}
	payload := model.RequestPayload{"action": "bind_index_plate", "Tracking Name": "run-42"}

	result := newTestDispatcher().Deliver(context.Background(), target, payload)

	assert.True(t, result.OK())
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "secret-key", gotAPIKey)
	assert.Equal(t, map[string]string{"action": "bind_index_plate", "Tracking Name": "run-42"}, gotBody)
}

func TestDeliver_ChatTargetHasNoAuthHeader(t *testing.T) {
	var gotMsg model.ChatMessage
	var hasAPIKey bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAPIKey = r.Header["X-Api-Key"]
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMsg))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	targets := []model.DeliveryTarget{{Kind: model.TargetChat, URL: srv.URL, Channel: "#sequencing"}}

	results := newTestDispatcher().DeliverChat(context.Background(), targets, "\n*COMET Run ID*: R7\n")

	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.False(t, hasAPIKey)
	assert.Equal(t, model.ChatMessage{Channel: "#sequencing", Text: "\n*COMET Run ID*: R7\n"}, gotMsg)
}

func TestDeliver_Non2xxIsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	target := model.DeliveryTarget{Kind: model.TargetStaging, URL: srv.URL}
	result := newTestDispatcher().Deliver(context.Background(), target, model.RequestPayload{"action": "metadata_lookup"})

	assert.NoError(t, result.Err)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.False(t, result.OK())
}

func TestDeliverAll_FailuresAreIndependent(t *testing.T) {
	var primaryHits, stagingHits atomic.Int32

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer primary.Close()

	staging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stagingHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer staging.Close()

	// The middle target points at a closed server and must fail without
	// stopping the others.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	targets := []model.DeliveryTarget{
		{Kind: model.TargetPrimary, URL: primary.URL},
		{Kind: model.TargetStaging, URL: deadURL},
		{Kind: model.TargetChat, URL: staging.URL},
	}

	results := newTestDispatcher().DeliverAll(context.Background(), targets, model.RequestPayload{"action": "concat_96_384"})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.Error(t, results[1].Err)
	assert.True(t, results[2].OK())
	assert.Equal(t, int32(1), primaryHits.Load())
	assert.Equal(t, int32(1), stagingHits.Load())
}

func TestDeliverChat_DuplicateBroadcast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Two targets on the same channel: both get the message, no dedup
	targets := []model.DeliveryTarget{
		{Kind: model.TargetChat, URL: srv.URL, Channel: "#lab"},
		{Kind: model.TargetChat, URL: srv.URL, Channel: "#lab"},
	}

	results := newTestDispatcher().DeliverChat(context.Background(), targets, "hello")
	require.Len(t, results, 2)
	assert.Equal(t, int32(2), hits.Load())
}
