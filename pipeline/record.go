package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/modelkit/device"
	"github.com/kbukum/modelkit/unit"
)

// CallRecord traces one item through the pipeline. It is created per call,
// handed to the observer once the call finishes and never retained.
type CallRecord struct {
	ID           string
	Task         string
	Raw          any
	Preprocessed any
	Computed     unit.Output
	Output       unit.Output
	Device       device.Binding
	// Batched is true when the item went through a native batch call.
	Batched  bool
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Observer receives finished call records. It runs synchronously on the
// calling goroutine.
type Observer func(CallRecord)

func (p *Pipeline) newRecord(raw any) *CallRecord {
	return &CallRecord{
		ID:      uuid.NewString(),
		Task:    p.task,
		Raw:     raw,
		Device:  p.device,
		Started: time.Now(),
	}
}

func (p *Pipeline) emit(rec *CallRecord, err error) {
	if p.observer == nil {
		return
	}
	rec.Err = err
	rec.Duration = time.Since(rec.Started)
	p.observer(*rec)
}
