package config

import (
	"testing"
	"time"

	"cometrelay/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("PRIMARY_ENDPOINT_URL", "https://processing.example.com/hook")
	t.Setenv("PRIMARY_API_KEY", "pk")
	t.Setenv("STAGING_ENDPOINT_URL", "https://staging.example.com/hook")
	t.Setenv("STAGING_API_KEY", "sk")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADDR", "")
	t.Setenv("DELIVERY_DELAY", "")
	t.Setenv("PLATE_INPUT_DELAY", "")
	t.Setenv("HTTP_TIMEOUT", "")
	t.Setenv("CHAT_WEBHOOK_URL", "")
	t.Setenv("CHAT_CHANNELS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Delivery.DefaultDelay)
	assert.Equal(t, 180*time.Second, cfg.Delivery.PlateInputDelay)
	assert.Equal(t, 30*time.Second, cfg.Delivery.HTTPTimeout)
	assert.Empty(t, cfg.Delivery.ChatChannels)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PRIMARY_API_KEY", "")
	t.Setenv("STAGING_ENDPOINT_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRIMARY_API_KEY")
	assert.Contains(t, err.Error(), "STAGING_ENDPOINT_URL")
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADDR", ":9090")
	t.Setenv("DELIVERY_DELAY", "5s")
	t.Setenv("PLATE_INPUT_DELAY", "2m")
	t.Setenv("CHAT_WEBHOOK_URL", "https://chat.example.com/webhook")
	t.Setenv("CHAT_CHANNELS", "#lab-ops, #sequencing ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Delivery.DefaultDelay)
	assert.Equal(t, 2*time.Minute, cfg.Delivery.PlateInputDelay)
	assert.Equal(t, []string{"#lab-ops", "#sequencing"}, cfg.Delivery.ChatChannels)
}

func TestLoad_BadDuration(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DELIVERY_DELAY", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELIVERY_DELAY")
}

func TestProcessingTargets(t *testing.T) {
	c := DeliveryConfig{
		PrimaryURL:    "https://p.example.com",
		PrimaryAPIKey: "pk",
		StagingURL:    "https://s.example.com",
		StagingAPIKey: "sk",
	}

	targets := c.ProcessingTargets()
	require.Len(t, targets, 2)
	assert.Equal(t, model.TargetPrimary, targets[0].Kind)
	assert.Equal(t, "pk", targets[0].APIKey)
	assert.Equal(t, model.TargetStaging, targets[1].Kind)
	assert.Equal(t, "sk", targets[1].APIKey)
}

func TestChatTargets(t *testing.T) {
	// No webhook URL disables chat delivery
	assert.Nil(t, (&DeliveryConfig{}).ChatTargets())

	// No channels: single target with the webhook's default channel
	c := DeliveryConfig{ChatWebhookURL: "https://chat.example.com/webhook"}
	targets := c.ChatTargets()
	require.Len(t, targets, 1)
	assert.Equal(t, "", targets[0].Channel)

	// One target per channel, all on the same URL
	c.ChatChannels = []string{"#lab-ops", "#sequencing"}
	targets = c.ChatTargets()
	require.Len(t, targets, 2)
	assert.Equal(t, "#lab-ops", targets[0].Channel)
	assert.Equal(t, "#sequencing", targets[1].Channel)
	assert.Equal(t, model.TargetChat, targets[1].Kind)
	assert.Equal(t, c.ChatWebhookURL, targets[1].URL)
}
