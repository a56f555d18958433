package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.timezone", "Local")
	v.SetDefault("log.console.enabled", true)
	v.SetDefault("log.console.level", "info")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "logs/batmap.log")
	v.SetDefault("log.file.level", "info")

	v.SetDefault("pipeline.transform", TransformDFT)
	v.SetDefault("pipeline.noisegate", false)

	v.SetDefault("model.type", ModelLinear)
	v.SetDefault("model.path", "")
	v.SetDefault("model.url", "")
	v.SetDefault("model.threads", 0)
	v.SetDefault("model.labels", []string{})

	v.SetDefault("queue.yielddelay", 100*time.Millisecond)
	v.SetDefault("queue.maxpending", 0)
	v.SetDefault("queue.retention", time.Duration(0))

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", "0.0.0.0:8080")
	v.SetDefault("webserver.ratelimit", 5.0)
	v.SetDefault("webserver.burst", 10)
	v.SetDefault("webserver.maxuploadsize", 32<<20)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "batmap/classifications")
	v.SetDefault("mqtt.clientid", "batmap")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}
