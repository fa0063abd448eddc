// Copyright 2025 lowrank Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package progress

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanKeyType string

var spanKeyName = spanKeyType(uuid.New().String())

type Status string

const (
	StatusPending  Status = "Pending"
	StatusComplete Status = "Complete"
	StatusRunning  Status = "Running"
	StatusFailed   Status = "Failed"
)

// Tracer collects root spans so long-running jobs can be listed.
type Tracer struct {
	name  string
	spans sync.Map
}

func NewTracer(name string) *Tracer {
	return &Tracer{name: name}
}

// Start creates a root span.
func (t *Tracer) Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	span := &Span{
		name:   name,
		status: StatusRunning,
		total:  total,
		start:  time.Now(),
	}
	t.spans.Store(name, span)
	return context.WithValue(ctx, spanKeyName, span), span
}

// List returns a snapshot of all root spans.
func (t *Tracer) List() []Progress {
	var list []Progress
	t.spans.Range(func(_, value interface{}) bool {
		span := value.(*Span)
		snapshot := span.Progress()
		snapshot.Tracer = t.name
		list = append(list, snapshot)
		return true
	})
	return list
}

type Span struct {
	name     string
	status   Status
	total    int
	count    int
	err      error
	start    time.Time
	finish   time.Time
	children sync.Map
}

func (s *Span) Add(n int) {
	s.count += n
}

func (s *Span) End() {
	s.count = s.total
	s.finish = time.Now()
	if s.status != StatusFailed {
		s.status = StatusComplete
	}
}

func (s *Span) Fail(err error) {
	s.err = err
	s.status = StatusFailed
}

func (s *Span) Count() int {
	return s.count
}

// Progress returns a snapshot of the span. While a child span is running the
// snapshot is rescaled to child steps, so the count keeps moving between
// parent increments. A failed child marks the whole span failed.
func (s *Span) Progress() Progress {
	snapshot := Progress{
		Name:       s.name,
		Status:     s.status,
		Count:      s.count,
		Total:      s.total,
		StartTime:  s.start,
		FinishTime: s.finish,
	}
	if snapshot.Status == "" {
		snapshot.Status = StatusPending
	}
	if s.err != nil {
		snapshot.Error = s.err.Error()
	}
	s.children.Range(func(_, value interface{}) bool {
		child := value.(*Span).Progress()
		switch child.Status {
		case StatusRunning:
			snapshot.Total = s.total * child.Total
			snapshot.Count = s.count*child.Total + child.Count
			return false
		case StatusFailed:
			snapshot.Status = StatusFailed
			snapshot.Error = child.Error
			return false
		default:
			return true
		}
	})
	return snapshot
}

// Start creates a child span under the span carried by the context. A nil or
// span-less context yields a detached span, so library code never needs to
// check whether tracing is enabled.
func Start(ctx context.Context, name string, total int) (context.Context, *Span) {
	childSpan := &Span{
		name:   name,
		status: StatusRunning,
		total:  total,
		count:  0,
		start:  time.Now(),
	}
	if ctx == nil {
		return nil, childSpan
	}
	span, ok := ctx.Value(spanKeyName).(*Span)
	if !ok {
		return ctx, childSpan
	}
	span.children.Store(name, childSpan)
	return context.WithValue(ctx, spanKeyName, childSpan), childSpan
}

// Fail marks the span carried by the context as failed.
func Fail(ctx context.Context, err error) {
	if ctx == nil {
		return
	}
	if span, ok := ctx.Value(spanKeyName).(*Span); ok {
		span.Fail(err)
	}
}

type Progress struct {
	Tracer     string
	Name       string
	Status     Status
	Error      string
	Count      int
	Total      int
	StartTime  time.Time
	FinishTime time.Time
}
