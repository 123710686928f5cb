package datacontext

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/validator"
)

var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrCheckpointExists   = errors.New("checkpoint already exists")
)

// Checkpoint pairs batch requests with the suites to validate them against.
type Checkpoint struct {
	Name        string                 `yaml:"name" json:"name"`
	Validations []CheckpointValidation `yaml:"validations" json:"validations"`
}

// CheckpointValidation is one batch request and suite pair.
type CheckpointValidation struct {
	BatchRequest         *batch.Request `yaml:"batch_request" json:"batch_request"`
	ExpectationSuiteName string         `yaml:"expectation_suite_name" json:"expectation_suite_name"`
}

// Validate checks that every validation names a request and a suite.
func (c *Checkpoint) Validate() error {
	if c == nil || strings.TrimSpace(c.Name) == "" {
		return errors.New("checkpoint name is required")
	}
	if len(c.Validations) == 0 {
		return fmt.Errorf("checkpoint %s has no validations", c.Name)
	}
	for i, v := range c.Validations {
		if v.ExpectationSuiteName == "" {
			return fmt.Errorf("checkpoint %s: validations[%d]: expectation_suite_name is required", c.Name, i)
		}
		if v.BatchRequest.IsRuntime() {
			return fmt.Errorf("checkpoint %s: validations[%d]: runtime batch requests cannot be stored", c.Name, i)
		}
		if err := v.BatchRequest.Validate(); err != nil {
			return fmt.Errorf("checkpoint %s: validations[%d]: %w", c.Name, i, err)
		}
	}
	return nil
}

// CheckpointResult is the outcome of RunCheckpoint.
type CheckpointResult struct {
	CheckpointName string                `json:"checkpoint_name"`
	RunName        string                `json:"run_name"`
	RunTime        time.Time             `json:"run_time"`
	Success        bool                  `json:"success"`
	Runs           []CheckpointRunResult `json:"run_results"`
}

// CheckpointRunResult is one stored validation of a checkpoint run.
type CheckpointRunResult struct {
	ValidationResultKey string                 `json:"validation_result_key"`
	Result              *validator.SuiteResult `json:"validation_result"`
}

// AddCheckpoint registers cp. A duplicate name is an error.
func (dc *DataContext) AddCheckpoint(_ context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.checkpointIndex(cp.Name) >= 0 {
		return fmt.Errorf("%w: %s", ErrCheckpointExists, cp.Name)
	}
	prev := dc.project.Checkpoints
	dc.project.Checkpoints = append(append([]*Checkpoint(nil), prev...), cp)
	if err := dc.persist(); err != nil {
		dc.project.Checkpoints = prev
		return fmt.Errorf("persist checkpoint %s: %w", cp.Name, err)
	}
	dc.logger.Info("added checkpoint", zap.String("checkpoint", cp.Name))
	return nil
}

// GetCheckpoint returns the named checkpoint.
func (dc *DataContext) GetCheckpoint(name string) (*Checkpoint, error) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	i := dc.checkpointIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, name)
	}
	return dc.project.Checkpoints[i], nil
}

// ListCheckpoints returns checkpoint names in registration order.
func (dc *DataContext) ListCheckpoints() []string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	names := make([]string, 0, len(dc.project.Checkpoints))
	for _, cp := range dc.project.Checkpoints {
		names = append(names, cp.Name)
	}
	return names
}

func (dc *DataContext) checkpointIndex(name string) int {
	for i, cp := range dc.project.Checkpoints {
		if cp.Name == name {
			return i
		}
	}
	return -1
}

// RunCheckpoint validates every pair of the checkpoint and stores each
// result. An empty runName is replaced with a uuid.
func (dc *DataContext) RunCheckpoint(ctx context.Context, name, runName string) (*CheckpointResult, error) {
	cp, err := dc.GetCheckpoint(name)
	if err != nil {
		return nil, err
	}
	if runName == "" {
		runName = uuid.NewString()
	}
	out := &CheckpointResult{
		CheckpointName: cp.Name,
		RunName:        runName,
		RunTime:        time.Now().UTC(),
		Success:        true,
		Runs:           make([]CheckpointRunResult, 0, len(cp.Validations)),
	}
	for i, v := range cp.Validations {
		val, err := dc.GetValidator(ctx, v.BatchRequest, v.ExpectationSuiteName)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s: validations[%d]: %w", cp.Name, i, err)
		}
		res, err := val.Validate(ctx, validator.ValidateOptions{RunName: runName})
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s: validations[%d]: %w", cp.Name, i, err)
		}
		key, err := dc.validations.Put(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s: store result: %w", cp.Name, err)
		}
		out.Success = out.Success && res.Success
		out.Runs = append(out.Runs, CheckpointRunResult{ValidationResultKey: key, Result: res})
	}
	dc.logger.Info("ran checkpoint",
		zap.String("checkpoint", cp.Name),
		zap.String("run_name", runName),
		zap.Bool("success", out.Success))
	return out, nil
}
