package serve

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Demr1on/batmap-app/internal/conf"
)

func TestRunStopsOnCancel(t *testing.T) {
	t.Chdir(t.TempDir())

	settings, err := conf.LoadFrom(viper.New())
	require.NoError(t, err)
	settings.WebServer.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, settings) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the context expired")
	}
}

func TestRunRejectsInvalidMQTTBroker(t *testing.T) {
	t.Chdir(t.TempDir())

	settings, err := conf.LoadFrom(viper.New())
	require.NoError(t, err)
	settings.WebServer.Listen = "127.0.0.1:0"
	settings.MQTT.Enabled = true
	settings.MQTT.Broker = "not a url"

	err = Run(t.Context(), settings)
	assert.ErrorContains(t, err, "MQTT")
}

func TestCommandFlags(t *testing.T) {
	cmd := Command(&conf.Settings{})
	for _, name := range []string{"listen", "max-pending", "retention", "yield-delay", "mqtt"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
