package classifier

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/features"
	"github.com/Demr1on/batmap-app/internal/logger"
	"github.com/Demr1on/batmap-app/internal/observability/metrics"
)

// ErrModelNotReady is returned by Classify before a model has been loaded.
var ErrModelNotReady = errors.NewStd("classification model is not loaded")

// Classifier owns the active model and serializes inference on it.
type Classifier struct {
	mu      sync.Mutex
	model   Model
	name    string
	metrics *metrics.ClassifierMetrics
	log     logger.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithMetrics records predictions and loads on m.
func WithMetrics(m *metrics.ClassifierMetrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// WithModel starts the classifier with an already loaded model.
func WithModel(m Model) Option {
	return func(c *Classifier) {
		c.model = m
		c.name = modelName(m)
	}
}

// New returns a Classifier. Without WithModel it is not ready until Load
// succeeds.
func New(opts ...Option) *Classifier {
	c := &Classifier{log: GetLogger()}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics != nil {
		c.metrics.SetModelLoaded(c.model != nil)
	}
	return c
}

// Load obtains a model from loader and makes it active. The previous model
// is closed after the swap. On failure the current model stays active.
func (c *Classifier) Load(ctx context.Context, loader Loader) error {
	start := time.Now()
	m, err := loader.Load(ctx)
	if err == nil && m == nil {
		err = fmt.Errorf("loader returned no model")
	}
	if err == nil && len(m.Labels()) == 0 {
		_ = m.Close()
		err = fmt.Errorf("model reports no labels")
	}
	if c.metrics != nil {
		c.metrics.RecordModelLoad(err)
	}
	if err != nil {
		return errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Timing("model-load", time.Since(start)).
			Build()
	}

	c.mu.Lock()
	old := c.model
	c.model = m
	c.name = modelName(m)
	c.mu.Unlock()

	c.log.Info("classification model loaded",
		logger.String("model", c.name),
		logger.Int("labels", len(m.Labels())),
		logger.Duration("elapsed", time.Since(start)))

	if old != nil {
		if err := old.Close(); err != nil {
			c.log.Warn("failed to close previous model", logger.Error(err))
		}
	}
	return nil
}

// Ready reports whether a model is loaded.
func (c *Classifier) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model != nil
}

// Labels returns the active model's labels, or nil when not ready.
func (c *Classifier) Labels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == nil {
		return nil
	}
	return c.model.Labels()
}

// Classify runs the model on vec.ModelInput() and returns the most probable
// label with its confidence tier and the full distribution.
func (c *Classifier) Classify(ctx context.Context, vec *features.Vector) (*Result, error) {
	start := time.Now()
	input := vec.ModelInput()

	c.mu.Lock()
	model, name := c.model, c.name
	if model == nil {
		c.mu.Unlock()
		c.recordError("", ErrModelNotReady)
		return nil, errors.New(ErrModelNotReady).
			Component("classifier").
			Category(errors.CategoryModelNotReady).
			Build()
	}
	probs, err := model.Predict(ctx, input)
	labels := model.Labels()
	c.mu.Unlock()

	if err == nil {
		err = validateDistribution(probs, labels)
	}
	if err != nil {
		c.recordError(name, err)
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryClassification).
			Context("model", name).
			Build()
	}

	best := floats.MaxIdx(probs)
	scores := make([]Score, len(probs))
	for i, p := range probs {
		scores[i] = Score{Label: labels[i], Probability: p}
	}

	res := &Result{
		Label:          labels[best],
		Probability:    probs[best],
		Confidence:     ConfidenceFor(probs[best]),
		ProcessingTime: time.Since(start),
		Scores:         scores,
	}

	if c.metrics != nil {
		c.metrics.RecordPrediction(name, res.Label, res.ProcessingTime.Seconds(), nil)
	}
	c.log.Debug("classified",
		logger.String("label", res.Label),
		logger.Float64("probability", res.Probability),
		logger.String("confidence", string(res.Confidence)),
		logger.Duration("elapsed", res.ProcessingTime))

	return res, nil
}

// Close releases the active model.
func (c *Classifier) Close() error {
	c.mu.Lock()
	m := c.model
	c.model = nil
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetModelLoaded(false)
	}
	if m == nil {
		return nil
	}
	return m.Close()
}

func (c *Classifier) recordError(model string, err error) {
	if c.metrics != nil {
		c.metrics.RecordPrediction(model, "", 0, err)
	}
}

func validateDistribution(probs []float64, labels []string) error {
	if len(probs) == 0 {
		return fmt.Errorf("model returned an empty distribution")
	}
	if len(probs) != len(labels) {
		return fmt.Errorf("model returned %d scores for %d labels", len(probs), len(labels))
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("score %d for %q is outside [0,1]: %v", i, labels[i], p)
		}
	}
	return nil
}
