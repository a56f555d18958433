package observability

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Demr1on/batmap-app/internal/conf"
)

func TestInitSentryDisabled(t *testing.T) {
	t.Parallel()

	flush, err := InitSentry(&conf.SentrySettings{Enabled: false}, "test")
	require.NoError(t, err)
	require.NotNil(t, flush)
	flush()

	flush, err = InitSentry(nil, "test")
	require.NoError(t, err)
	flush()
}

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{
		ServerName: "field-station-7",
		User:       sentry.User{IPAddress: "192.0.2.10"},
		Contexts:   map[string]sentry.Context{"os": {"name": "linux"}, "trace": {}},
		Extra:      map[string]any{"component": "jobqueue", "path": "/home/user/rec.wav"},
		Tags:       map[string]string{"hostname": "field-station-7", "category": "audio-decode"},
	}

	out := applyPrivacyFilters(event)
	assert.Empty(t, out.ServerName)
	assert.Empty(t, out.User.IPAddress)
	assert.NotContains(t, out.Contexts, "os")
	assert.Contains(t, out.Contexts, "trace")
	assert.Equal(t, map[string]any{"component": "jobqueue"}, out.Extra)
	assert.Equal(t, map[string]string{"category": "audio-decode"}, out.Tags)
}
