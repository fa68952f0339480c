package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/signald/internal/adapters"
	"github.com/fyrsmithlabs/signald/internal/adapters/whatsapp"
	"github.com/fyrsmithlabs/signald/internal/config"
	"github.com/fyrsmithlabs/signald/internal/logging"
	"github.com/fyrsmithlabs/signald/internal/signal"
)

func TestNewFromConfig_NoCredentials(t *testing.T) {
	m, err := NewFromConfig(context.Background(), config.Default(), nil, adapters.Deps{})
	require.NoError(t, err)
	assert.Zero(t, m.Len())
	assert.Equal(t, EmptyMessage, m.AssessCoverage().Message)
}

func TestNewFromConfig_RegistersConfiguredSources(t *testing.T) {
	cfg := config.Default()
	cfg.Slack.Token = config.Secret("xoxp-123")
	cfg.Asana.Token = config.Secret("1/1234:abcd")
	cfg.GitHub.Token = config.Secret("ghp_abc")
	cfg.GitHub.Repos = []string{"acme/api"}
	cfg.WhatsApp.Token = config.Secret("EAAtest")
	cfg.WhatsApp.PhoneNumberID = "1234567890"

	logger := logging.NewTestLogger()
	m, err := NewFromConfig(context.Background(), cfg, logger.Logger, adapters.Deps{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	assert.Equal(t, []signal.Source{
		signal.SourceAsana, signal.SourceGitHub, signal.SourceSlack, signal.SourceWhatsApp,
	}, m.Sources())

	a, ok := m.Adapter(signal.SourceWhatsApp)
	require.True(t, ok)
	wa, ok := a.(*whatsapp.Adapter)
	require.True(t, ok)
	assert.IsType(t, &whatsapp.MemoryInbox{}, wa.Inbox())

	logger.AssertField(t, "aggregation manager ready", "whatsapp_inbox", "memory")
}

func TestNewFromConfig_InvalidCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Slack.Token = config.Secret("not-a-slack-token")
	cfg.Linear.Token = config.Secret("lin_api_ok")
	cfg.WhatsApp.Token = config.Secret("EAAtest")
	cfg.WhatsApp.PhoneNumberID = "+1 555"

	m, err := NewFromConfig(context.Background(), cfg, nil, adapters.Deps{})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, signal.ErrInvalidCredential)
	assert.Contains(t, err.Error(), "slack")
	assert.Contains(t, err.Error(), "whatsapp")
	assert.NotContains(t, err.Error(), "linear")
}

func TestNewFromConfig_RedisUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.WhatsApp.Token = config.Secret("EAAtest")
	cfg.WhatsApp.PhoneNumberID = "1234567890"
	cfg.WhatsApp.Inbox = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := NewFromConfig(context.Background(), cfg, nil, adapters.Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis inbox")
}
