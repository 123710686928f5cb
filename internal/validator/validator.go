// Package validator evaluates an expectation suite against loaded batches.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/expectation"
	"github.com/nucleus/dq-core/internal/frame"
	"github.com/nucleus/dq-core/internal/metrics"
)

// DefaultHeadRows is the number of rows Head shows when n <= 0.
const DefaultHeadRows = 5

// SuiteSaver persists expectation suites.
type SuiteSaver interface {
	Save(ctx context.Context, suite *expectation.Suite) error
}

// Validator is bound to batches and a suite. The last batch is active.
type Validator struct {
	batches  []*batch.Batch
	suite    *expectation.Suite
	registry *expectation.Registry
	saver    SuiteSaver
	format   expectation.ResultFormat
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the validator logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithMetrics records expectation and validation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithRegistry replaces the built-in expectation registry.
func WithRegistry(r *expectation.Registry) Option {
	return func(v *Validator) {
		if r != nil {
			v.registry = r
		}
	}
}

// WithSuiteSaver enables SaveExpectationSuite.
func WithSuiteSaver(s SuiteSaver) Option {
	return func(v *Validator) { v.saver = s }
}

// WithResultFormat sets the default result_format.
func WithResultFormat(f expectation.ResultFormat) Option {
	return func(v *Validator) { v.format = f }
}

// New creates a validator over batches.
func New(batches []*batch.Batch, suite *expectation.Suite, opts ...Option) (*Validator, error) {
	if len(batches) == 0 {
		return nil, errors.New("validator requires at least one batch")
	}
	if suite == nil {
		return nil, errors.New("validator requires an expectation suite")
	}
	v := &Validator{
		batches:  batches,
		suite:    suite,
		registry: expectation.DefaultRegistry(),
		format:   expectation.Basic,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ActiveBatch returns the batch expectations run against.
func (v *Validator) ActiveBatch() *batch.Batch { return v.batches[len(v.batches)-1] }

// Batches returns every bound batch.
func (v *Validator) Batches() []*batch.Batch { return v.batches }

// Suite returns the bound suite.
func (v *Validator) Suite() *expectation.Suite { return v.suite }

// Head returns the first n rows of the active batch.
func (v *Validator) Head(n int) *frame.Frame {
	if n <= 0 {
		n = DefaultHeadRows
	}
	return v.ActiveBatch().Data.Head(n)
}

// Expect evaluates one expectation against the active batch and records its
// configuration in the suite.
func (v *Validator) Expect(_ context.Context, expectationType string, kwargs expectation.Kwargs) *expectation.Result {
	cfg := expectation.Configuration{Type: expectationType, Kwargs: kwargs}
	res := v.registry.Evaluate(v.ActiveBatch().Data, cfg, v.format)
	v.metrics.ExpectationEvaluated(expectationType, res.Success)

	if _, known := v.registry.Get(expectationType); known {
		v.suite.Add(cfg)
	}
	v.logger.Debug("evaluated expectation",
		zap.String("expectation_type", expectationType),
		zap.Bool("success", res.Success),
		zap.Bool("raised_exception", res.ExceptionInfo.RaisedException))
	return res
}

// ValidateOptions tune a Validate run.
type ValidateOptions struct {
	ResultFormat expectation.ResultFormat
	RunName      string
	// OnlyFailures drops successful results from the output.
	OnlyFailures bool
}

// Statistics summarize a suite result.
type Statistics struct {
	EvaluatedExpectations    int     `json:"evaluated_expectations"`
	SuccessfulExpectations   int     `json:"successful_expectations"`
	UnsuccessfulExpectations int     `json:"unsuccessful_expectations"`
	SuccessPercent           float64 `json:"success_percent"`
}

// RunID identifies one validation run.
type RunID struct {
	RunName string    `json:"run_name"`
	RunTime time.Time `json:"run_time"`
}

// Meta describes the context of a suite result.
type Meta struct {
	ExpectationSuiteName string            `json:"expectation_suite_name"`
	RunID                RunID             `json:"run_id"`
	BatchID              string            `json:"batch_id"`
	BatchDefinition      *batch.Definition `json:"active_batch_definition,omitempty"`
	ValidationTime       time.Time         `json:"validation_time"`
}

// SuiteResult is the outcome of validating a suite.
type SuiteResult struct {
	Success    bool                  `json:"success"`
	Results    []*expectation.Result `json:"results"`
	Statistics Statistics            `json:"statistics"`
	Meta       Meta                  `json:"meta"`
}

// Validate runs every expectation of the suite against the active batch.
func (v *Validator) Validate(ctx context.Context, opts ValidateOptions) (*SuiteResult, error) {
	format := opts.ResultFormat
	if format == "" {
		format = v.format
	}
	runName := opts.RunName
	if runName == "" {
		runName = uuid.NewString()
	}
	active := v.ActiveBatch()
	now := time.Now().UTC()

	out := &SuiteResult{
		Success: true,
		Results: []*expectation.Result{},
		Meta: Meta{
			ExpectationSuiteName: v.suite.Name,
			RunID:                RunID{RunName: runName, RunTime: now},
			BatchID:              active.ID,
			BatchDefinition:      active.Definition,
			ValidationTime:       now,
		},
	}

	for _, cfg := range v.suite.Expectations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := v.registry.Evaluate(active.Data, cfg, format)
		v.metrics.ExpectationEvaluated(cfg.Type, res.Success)

		out.Statistics.EvaluatedExpectations++
		if res.Success {
			out.Statistics.SuccessfulExpectations++
			if opts.OnlyFailures {
				continue
			}
		} else {
			out.Statistics.UnsuccessfulExpectations++
			out.Success = false
		}
		out.Results = append(out.Results, res)
	}
	if n := out.Statistics.EvaluatedExpectations; n > 0 {
		out.Statistics.SuccessPercent = float64(out.Statistics.SuccessfulExpectations) / float64(n) * 100
	}

	v.metrics.ValidationCompleted(v.suite.Name, out.Success)
	v.logger.Info("validated expectation suite",
		zap.String("expectation_suite_name", v.suite.Name),
		zap.String("run_name", runName),
		zap.String("batch_id", active.ID),
		zap.Bool("success", out.Success),
		zap.Int("evaluated", out.Statistics.EvaluatedExpectations),
		zap.Int("unsuccessful", out.Statistics.UnsuccessfulExpectations))
	return out, nil
}

// SaveExpectationSuite persists the suite. With discardFailed, expectations
// that fail against the active batch are dropped first.
func (v *Validator) SaveExpectationSuite(ctx context.Context, discardFailed bool) error {
	if v.saver == nil {
		return errors.New("validator has no suite store")
	}
	if discardFailed {
		kept := make([]expectation.Configuration, 0, len(v.suite.Expectations))
		for _, cfg := range v.suite.Expectations {
			if v.registry.Evaluate(v.ActiveBatch().Data, cfg, expectation.BooleanOnly).Success {
				kept = append(kept, cfg)
			}
		}
		v.suite.Expectations = kept
	}
	if err := v.saver.Save(ctx, v.suite); err != nil {
		return fmt.Errorf("save expectation suite %s: %w", v.suite.Name, err)
	}
	return nil
}
