package digest

import (
	"errors"
	"fmt"
	"strings"
)

// Defaults for Options.
const (
	DefaultModel              = "gpt-4o-mini"
	DefaultAnalysisPercentage = 30
	DefaultTemperature        = 0.7
)

// Options are the recognized pipeline settings.
type Options struct {
	Model string

	// AnalysisPercentage is the share of each thread's posts that is sampled, in (0,100].
	AnalysisPercentage float64

	// Temperature applies to summary generation only; classification always uses
	// ClassificationTemperature.
	Temperature float64

	ClassificationBatchSize int
	Criterion               Criterion
}

func DefaultOptions() Options {
	return Options{
		Model:                   DefaultModel,
		AnalysisPercentage:      DefaultAnalysisPercentage,
		Temperature:             DefaultTemperature,
		ClassificationBatchSize: DefaultClassificationBatchSize,
		Criterion:               DefaultCriterion(),
	}
}

func (o Options) Validate() error {
	if strings.TrimSpace(o.Model) == "" {
		return errors.New("model is empty")
	}
	if o.AnalysisPercentage <= 0 || o.AnalysisPercentage > 100 {
		return fmt.Errorf("analysis percentage must be in (0,100], got %v", o.AnalysisPercentage)
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2], got %v", o.Temperature)
	}
	if o.ClassificationBatchSize <= 0 {
		return errors.New("classification batch size must be > 0")
	}
	if strings.TrimSpace(o.Criterion.Name) == "" || strings.TrimSpace(o.Criterion.Definition) == "" {
		return errors.New("criterion name and definition are required")
	}
	return nil
}
