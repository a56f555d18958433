// Package serve runs the classification job queue behind the HTTP API.
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Demr1on/batmap-app/cmd/setup"
	"github.com/Demr1on/batmap-app/internal/analysis/jobqueue"
	"github.com/Demr1on/batmap-app/internal/api"
	"github.com/Demr1on/batmap-app/internal/conf"
	"github.com/Demr1on/batmap-app/internal/logger"
	"github.com/Demr1on/batmap-app/internal/mqtt"
	"github.com/Demr1on/batmap-app/internal/observability"
)

// stopTimeout bounds how long shutdown waits for the running job.
const stopTimeout = 30 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the classification HTTP service",
		Long:  "Accept recordings over HTTP, classify them one at a time in the background and serve the results by job id.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("listen", "0.0.0.0:8080", "Listen address and port of the HTTP API")
	flags.Int("max-pending", 0, "Reject submissions while this many jobs wait, 0 = unbounded")
	flags.Duration("retention", 0, "How long finished jobs stay queryable, 0 = forever")
	flags.Duration("yield-delay", 100*time.Millisecond, "Pause between consecutive jobs")
	flags.Bool("mqtt", false, "Publish finished jobs to the configured MQTT broker")

	for key, name := range map[string]string{
		"webserver.listen": "listen",
		"queue.maxpending": "max-pending",
		"queue.retention":  "retention",
		"queue.yielddelay": "yield-delay",
		"mqtt.enabled":     "mqtt",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Run serves until ctx is canceled. A missing or broken model does not
// stop the service; jobs fail with model-not-ready until one is loaded.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("serve")

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	pipeline, cls, err := setup.BuildPipeline(settings, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := cls.Close(); err != nil {
			log.Warn("failed to close model", logger.Error(err))
		}
	}()

	if err := setup.LoadModel(ctx, cls, &settings.Model); err != nil {
		log.Warn("starting without a classification model", logger.Error(err))
	}

	opts := []jobqueue.Option{
		jobqueue.WithYieldDelay(settings.Queue.YieldDelay),
		jobqueue.WithMaxPending(settings.Queue.MaxPending),
		jobqueue.WithRetention(settings.Queue.Retention),
		jobqueue.WithMetrics(m.JobQueue),
	}

	var publisher *mqtt.Publisher
	if settings.MQTT.Enabled {
		mqttConfig := mqtt.ConfigFromSettings(&settings.MQTT)
		client, err := mqtt.NewClient(mqttConfig, m.MQTT)
		if err != nil {
			return fmt.Errorf("error creating MQTT client: %w", err)
		}
		publisher = mqtt.NewPublisher(client, mqttConfig, mqtt.DefaultBacklog)
		opts = append(opts, jobqueue.WithCompletionHook(publisher.Hook))
	}

	scheduler, err := jobqueue.New(pipeline, opts...)
	if err != nil {
		return err
	}

	server, err := api.New(api.ConfigFromSettings(settings), scheduler,
		api.WithMetrics(m),
		api.WithReadiness(cls.Ready))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	scheduler.Start(gctx)

	g.Go(func() error { return server.Run(gctx) })
	if publisher != nil {
		g.Go(func() error { return publisher.Run(gctx) })
	}

	log.Info("classification service started",
		logger.String("listen", settings.WebServer.Listen),
		logger.Bool("model_ready", cls.Ready()),
		logger.Bool("mqtt", publisher != nil))

	runErr := g.Wait()
	if err := scheduler.Stop(stopTimeout); err != nil {
		log.Warn("job queue did not stop cleanly", logger.Error(err))
	}
	log.Info("classification service stopped", logger.Any("stats", scheduler.Stats()))
	return runErr
}
