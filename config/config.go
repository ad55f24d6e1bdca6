// Package config loads a stage's YAML configuration file, layering
// environment variables and built-in defaults on top, the way
// cli/consumer.go's viper bindings did in the teacher repo.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"github.com/SUSE-Enceladus/mqsf/mqerr"
)

// Default values, ported from the original's config/base_config.py.
const (
	DefaultMQHost              = "localhost"
	DefaultMQUser              = "guest"
	DefaultMQPass              = "guest"
	DefaultMQPort              = 5672
	DefaultMQVHost             = "/"
	DefaultMQHeartbeat         = 60
	DefaultLogDir              = "/var/log/mqsf/"
	DefaultBaseJobDir          = "/var/lib/mqsf/"
	DefaultNoOpOkay            = true
	DefaultBaseThreadPoolCount = 10
	DefaultPluginKey           = "plugin"
	DefaultConfigFile          = "/etc/mqsf/mqsf_config.yaml"
)

// View is a read-only accessor over a stage's configuration: the
// merged result of MQSF_-prefixed environment variables, the YAML file,
// and the defaults above, in that precedence order (an environment
// variable overrides the file, the file overrides a default).
type View struct {
	v *viper.Viper
}

// Load reads the YAML document at path (falling back to
// DefaultConfigFile when path is empty) and binds environment variable
// overrides, returning a View. previous_service is required; its
// absence is a config error (spec §6/§7).
func Load(path string) (*View, error) {
	v := viper.New()

	v.SetEnvPrefix("MQSF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mq_host", DefaultMQHost)
	v.SetDefault("mq_user", DefaultMQUser)
	v.SetDefault("mq_pass", DefaultMQPass)
	v.SetDefault("mq_port", DefaultMQPort)
	v.SetDefault("mq_vhost", DefaultMQVHost)
	v.SetDefault("mq_heartbeat", DefaultMQHeartbeat)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("base_job_dir", DefaultBaseJobDir)
	v.SetDefault("no_op_okay", DefaultNoOpOkay)
	v.SetDefault("base_thread_pool_count", DefaultBaseThreadPoolCount)
	v.SetDefault("plugin_key", DefaultPluginKey)

	if path == "" {
		path = DefaultConfigFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, mqerr.Config(err, "reading config file %s", path)
		}
	}

	view := &View{v: v}
	if view.PreviousService() == "" {
		return nil, mqerr.Config(nil, "previous_service is required")
	}
	return view, nil
}

func (c *View) MQHost() string           { return c.v.GetString("mq_host") }
func (c *View) MQUser() string           { return c.v.GetString("mq_user") }
func (c *View) MQPass() string           { return c.v.GetString("mq_pass") }
func (c *View) MQPort() int              { return c.v.GetInt("mq_port") }
func (c *View) MQVHost() string          { return c.v.GetString("mq_vhost") }
func (c *View) MQHeartbeat() int         { return c.v.GetInt("mq_heartbeat") }
func (c *View) LogDir() string           { return c.v.GetString("log_dir") }
func (c *View) BaseJobDir() string       { return c.v.GetString("base_job_dir") }
func (c *View) PreviousService() string  { return c.v.GetString("previous_service") }
func (c *View) NoOpOkay() bool           { return c.v.GetBool("no_op_okay") }
func (c *View) BaseThreadPoolCount() int { return c.v.GetInt("base_thread_pool_count") }
func (c *View) PluginKey() string        { return c.v.GetString("plugin_key") }

// LogFile returns the per-stage log file path, <log_dir><service>_service.log.
func (c *View) LogFile(service string) string {
	return c.LogDir() + service + "_service.log"
}

// JobDir returns the per-stage job directory, <base_job_dir>/<service>_jobs/.
func (c *View) JobDir(service string) string {
	return c.BaseJobDir() + "/" + service + "_jobs/"
}
