// Command mqsfctl is an example pipeline-stage entry point: it wires a
// stage's config, plugin registry, and engine together and runs until a
// termination signal arrives. Grounded on the teacher's cli/root.go
// (cobra root command, persistent --config flag, viper precedence) and
// on main.py's exception handling (known framework error -> exit 1,
// interrupt -> exit 0).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SUSE-Enceladus/mqsf/broker"
	"github.com/SUSE-Enceladus/mqsf/config"
	"github.com/SUSE-Enceladus/mqsf/engine"
	"github.com/SUSE-Enceladus/mqsf/examples/notifplugin"
	"github.com/SUSE-Enceladus/mqsf/examples/wxplugin"
	"github.com/SUSE-Enceladus/mqsf/mqerr"
	"github.com/SUSE-Enceladus/mqsf/mqlog"
	"github.com/SUSE-Enceladus/mqsf/registry"
)

var cfgFile string

// version is set at build time via -ldflags, matching the teacher's
// convention of a package-level var left at its zero value otherwise.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mqsfctl",
	Short: "run a message-queue pipeline stage",
	Long: `mqsfctl runs a single pipeline stage: it consumes result
messages from the previous stage's exchange, dispatches each job to a
named plugin, and publishes its own result to the next stage.`,
}

var runCmd = &cobra.Command{
	Use:   "run <service-name>",
	Short: "start a stage and block until it is stopped",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the stage's YAML config file")
	rootCmd.AddCommand(runCmd, versionCmd)
}

// runStage builds the example plugin registry for the two reference
// stages this repository ships (wx, notif) and runs the named one.
// A real deployment links its own plugin package in place of this
// selection.
func runStage(serviceName string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	reg := registry.New()
	switch serviceName {
	case "wx":
		reg.Register(wxplugin.ForecastDescriptor())
		reg.Register(wxplugin.CurrentDescriptor())
	case "notif":
		reg.Register(notifplugin.New().Descriptor())
	}

	brokerClient := broker.NewClient(broker.Config{
		Host:      cfg.MQHost(),
		User:      cfg.MQUser(),
		Pass:      cfg.MQPass(),
		Port:      cfg.MQPort(),
		VHost:     cfg.MQVHost(),
		Heartbeat: cfg.MQHeartbeat(),
	})

	e := engine.New(serviceName, cfg, reg, brokerClient)
	return e.Start()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitForError(err)
	}
}

// exitForError logs the error returned by a run and exits with code 1;
// framework errors (config, connect, log setup) and any other error
// differ only in the log message. An interrupt never reaches here:
// engine.Stop's signal handler shuts the stage down gracefully, Start
// returns nil, and main exits 0.
func exitForError(err error) {
	if mqerr.Is(err, mqerr.CategoryConfig) ||
		mqerr.Is(err, mqerr.CategoryConnect) ||
		mqerr.Is(err, mqerr.CategoryLogSetup) {
		mqlog.Logger.WithError(err).Error("stage exited with a configuration or connection error")
		os.Exit(1)
	}
	mqlog.Logger.WithError(err).Error("stage exited with an unexpected error")
	os.Exit(1)
}
