package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/nirosys/infraplug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	pluginName    = "example"
	pluginVersion = "1.0.0"
)

func main() {
	cmd := newRootCommand(rand.New(rand.NewSource(time.Now().UnixNano())))
	if err := cmd.Execute(); err != nil {
		log.WithField("op", "example:main").WithError(err).Error("plugin failed")
		os.Exit(1)
	}
}

func newRootCommand(rng *rand.Rand) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "example-plugin",
		Short:         "Example plugin emitting synthetic metrics and inventory",
		Version:       pluginVersion,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *infraplug.DefaultConfig
			cfg.Name = pluginName
			cfg.PluginVersion = pluginVersion
			cfg.Verbose = v.GetBool("verbose")
			cfg.Pretty = v.GetBool("pretty")
			cfg.Metrics = v.GetBool("metrics")
			cfg.Inventory = v.GetBool("inventory")
			cfg.CacheDir = v.GetString("cache-dir")

			return run(cmd.Context(), &cfg, options{
				environment: v.GetString("environment"),
				dot:         v.GetBool("dot"),
				rng:         rng,
			}, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.BoolP("verbose", "v", false, "Print more information to logs")
	flags.BoolP("pretty", "p", false, "Print pretty formatted JSON")
	flags.Bool("metrics", false, "Only collect metrics")
	flags.Bool("inventory", false, "Only collect inventory")
	flags.String("environment", "", "Environment reported with metrics (default $ENVIRONMENT)")
	flags.Bool("dot", false, "Write the payload shape as Graphviz instead of JSON")
	flags.String("cache-dir", infraplug.DefaultConfig.CacheDir, "Directory holding the metric cache")

	mustBind(v.BindPFlags(flags))
	for key, env := range map[string]string{
		"environment": "ENVIRONMENT",
		"verbose":     "VERBOSE",
		"pretty":      "PRETTY",
	} {
		mustBind(v.BindEnv(key, env))
	}

	return cmd
}

// mustBind panics on a flag or env binding error; those are programming
// errors in the command definition.
func mustBind(err error) {
	if err != nil {
		panic(fmt.Sprintf("binding configuration: %v", err))
	}
}

type options struct {
	environment string
	dot         bool
	rng         *rand.Rand
}

func run(ctx context.Context, cfg *infraplug.Config, opts options, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	infraplug.SetupLogging(stderr, cfg.Verbose)

	integration, err := infraplug.NewIntegration(cfg)
	if err != nil {
		return err
	}

	c := &collector{environment: opts.environment, rng: opts.rng}
	if err := integration.RegisterCollector("example-metrics", infraplug.KindMetrics, infraplug.CollectorFunc(c.collectMetrics)); err != nil {
		return err
	}
	if err := integration.RegisterCollector("example-inventory", infraplug.KindInventory, infraplug.CollectorFunc(c.collectInventory)); err != nil {
		return err
	}

	if err := integration.Run(ctx); err != nil {
		return err
	}
	integration.EmitMetrics()

	if opts.dot {
		return integration.PublishDot(stdout)
	}
	return integration.Publish(stdout)
}
