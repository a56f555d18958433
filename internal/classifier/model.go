// Package classifier turns feature vectors into species predictions with a
// pluggable inference model.
package classifier

import "context"

// Model is a loaded inference model. Predict returns one probability per
// label, in Labels order. Implementations need not be safe for concurrent
// use; Classifier serializes access.
type Model interface {
	Predict(ctx context.Context, input []float64) ([]float64, error)
	Labels() []string
	Close() error
}

// Loader produces a ready Model.
type Loader interface {
	Load(ctx context.Context) (Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Model, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (Model, error) {
	return f(ctx)
}

// namer is implemented by models that report an identifier for logs and
// metrics.
type namer interface {
	Name() string
}

func modelName(m Model) string {
	if n, ok := m.(namer); ok {
		return n.Name()
	}
	return "unnamed"
}
