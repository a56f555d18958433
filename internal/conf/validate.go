package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validatePipelineSettings,
		validateModelSettings,
		validateQueueSettings,
		validateWebServerSettings,
		validateMQTTSettings,
		validateSentrySettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validatePipelineSettings(s *Settings) []string {
	s.Pipeline.Transform = strings.ToLower(strings.TrimSpace(s.Pipeline.Transform))
	if !slices.Contains([]string{TransformDFT, TransformFFT}, s.Pipeline.Transform) {
		return []string{fmt.Sprintf("pipeline.transform must be %q or %q, got %q", TransformDFT, TransformFFT, s.Pipeline.Transform)}
	}
	return nil
}

func validateModelSettings(s *Settings) []string {
	var errs []string

	s.Model.Type = strings.ToLower(strings.TrimSpace(s.Model.Type))
	if !slices.Contains([]string{ModelLinear, ModelTFLite}, s.Model.Type) {
		errs = append(errs, fmt.Sprintf("model.type must be %q or %q, got %q", ModelLinear, ModelTFLite, s.Model.Type))
	}

	if s.Model.URL != "" {
		u, err := url.Parse(s.Model.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("model.url must be an http(s) URL, got %q", s.Model.URL))
		}
		if s.Model.Type == ModelTFLite && s.Model.Path == "" {
			errs = append(errs, "model.url is only supported for linear models; tflite models need model.path")
		}
	}

	if s.Model.Threads < 0 {
		errs = append(errs, "model.threads must be >= 0")
	}
	return errs
}

func validateQueueSettings(s *Settings) []string {
	var errs []string
	if s.Queue.YieldDelay < 0 {
		errs = append(errs, "queue.yielddelay must not be negative")
	}
	if s.Queue.MaxPending < 0 {
		errs = append(errs, "queue.maxpending must be >= 0")
	}
	if s.Queue.Retention < 0 {
		errs = append(errs, "queue.retention must not be negative")
	}
	return errs
}

func validateWebServerSettings(s *Settings) []string {
	if !s.WebServer.Enabled {
		return nil
	}

	var errs []string
	if _, _, err := net.SplitHostPort(s.WebServer.Listen); err != nil {
		errs = append(errs, fmt.Sprintf("webserver.listen is not a valid address: %v", err))
	}
	if s.WebServer.RateLimit < 0 {
		errs = append(errs, "webserver.ratelimit must be >= 0")
	}
	if s.WebServer.RateLimit > 0 && s.WebServer.Burst < 1 {
		errs = append(errs, "webserver.burst must be >= 1 when rate limiting is enabled")
	}
	if s.WebServer.MaxUploadSize <= 0 {
		errs = append(errs, "webserver.maxuploadsize must be positive")
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}

	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when MQTT is enabled")
	} else if u, err := url.Parse(s.MQTT.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker must look like tcp://host:port, got %q", s.MQTT.Broker))
	}
	if strings.TrimSpace(s.MQTT.Topic) == "" {
		errs = append(errs, "mqtt.topic is required when MQTT is enabled")
	}
	return errs
}

func validateSentrySettings(s *Settings) []string {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return []string{"sentry.dsn is required when sentry is enabled"}
	}
	return nil
}
