package store

import (
	"context"
	"errors"
	"fmt"
)

// errSuperseded stops a pipeline quietly: a newer request owns the slice.
var errSuperseded = errors.New("superseded by a newer request")

// StageError names the pipeline stage that failed.
type StageError struct {
	Pipeline string
	Stage    string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: stage %s: %v", e.Pipeline, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type stage struct {
	name string
	run  func(context.Context) error
}

// pipeline runs dependent fetches in order. A failing stage stops the chain
// so later stages never run against data that was not loaded.
type pipeline struct {
	name   string
	stages []stage
}

func newPipeline(name string) *pipeline {
	return &pipeline{name: name}
}

func (p *pipeline) then(name string, run func(context.Context) error) *pipeline {
	p.stages = append(p.stages, stage{name: name, run: run})
	return p
}

func (p *pipeline) run(ctx context.Context) error {
	for _, s := range p.stages {
		if err := s.run(ctx); err != nil {
			if errors.Is(err, errSuperseded) {
				return nil
			}
			return &StageError{Pipeline: p.name, Stage: s.name, Err: err}
		}
	}
	return nil
}
