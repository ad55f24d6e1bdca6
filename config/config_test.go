package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mqsf_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "previous_service: wx\n")

	view, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultMQHost, view.MQHost())
	assert.Equal(t, DefaultMQUser, view.MQUser())
	assert.Equal(t, DefaultMQPort, view.MQPort())
	assert.Equal(t, DefaultBaseThreadPoolCount, view.BaseThreadPoolCount())
	assert.Equal(t, DefaultPluginKey, view.PluginKey())
	assert.True(t, view.NoOpOkay())
	assert.Equal(t, "wx", view.PreviousService())
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
mq_host: broker.internal
mq_port: 5673
previous_service: wx
no_op_okay: false
plugin_key: task_type
`)

	view, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "broker.internal", view.MQHost())
	assert.Equal(t, 5673, view.MQPort())
	assert.False(t, view.NoOpOkay())
	assert.Equal(t, "task_type", view.PluginKey())
}

func TestLoadMissingPreviousServiceIsConfigError(t *testing.T) {
	path := writeConfig(t, "mq_host: localhost\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLogFileAndJobDir(t *testing.T) {
	path := writeConfig(t, "previous_service: wx\nlog_dir: /var/log/mqsf/\nbase_job_dir: /var/lib/mqsf\n")

	view, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/log/mqsf/notif_service.log", view.LogFile("notif"))
	assert.Equal(t, "/var/lib/mqsf/notif_jobs/", view.JobDir("notif"))
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "previous_service: wx\n")

	t.Setenv("MQSF_MQ_HOST", "envhost")

	view, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "envhost", view.MQHost())
}
