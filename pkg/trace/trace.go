// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package trace records a sequencer run as a CBOR sequence so a maneuver
// can be inspected after the fact, frame by frame.
package trace

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/sbusctl/pkg/sbus"
	"github.com/Thermoquad/sbusctl/pkg/sequence"
)

// Record kinds
const (
	KindFrame uint8 = 0x00
	KindPhase uint8 = 0x01
)

// Record is one entry of a trace file. Map keys are small integers to
// keep records compact.
type Record struct {
	Kind     uint8    `cbor:"0,keyasint"`
	Tick     uint64   `cbor:"1,keyasint"`
	Phase    uint8    `cbor:"2,keyasint"`
	Channels []uint16 `cbor:"3,keyasint,omitempty"`
	Frame    []byte   `cbor:"4,keyasint,omitempty"`
	TimeMs   int64    `cbor:"5,keyasint"`
}

// PhaseName returns the phase of the record as text
func (r *Record) PhaseName() string {
	return sequence.Phase(r.Phase).String()
}

// Recorder writes sequencer events to w. It implements sequence.Observer.
type Recorder struct {
	enc   *cbor.Encoder
	now   func() time.Time
	count int
	err   error
}

// NewRecorder creates a recorder writing to w
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: cbor.NewEncoder(w), now: time.Now}
}

// PhaseStarted records a phase boundary
func (r *Recorder) PhaseStarted(ev sequence.PhaseEvent) {
	r.write(&Record{
		Kind:   KindPhase,
		Tick:   uint64(ev.Tick),
		Phase:  uint8(ev.Phase),
		TimeMs: ev.Time.UnixMilli(),
	})
}

// FrameSent records one transmitted frame
func (r *Recorder) FrameSent(ev sequence.FrameEvent) {
	r.write(&Record{
		Kind:     KindFrame,
		Tick:     uint64(ev.Tick),
		Phase:    uint8(ev.Phase),
		Channels: ev.Channels[:],
		Frame:    ev.Frame[:],
		TimeMs:   r.now().UnixMilli(),
	})
}

func (r *Recorder) write(rec *Record) {
	if r.err != nil {
		return
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("trace record %d: %w", r.count, err)
		return
	}
	r.count++
}

// Count returns the number of records written
func (r *Recorder) Count() int {
	return r.count
}

// Err returns the first write error. Recording stops after an error but
// the run it observes continues.
func (r *Recorder) Err() error {
	return r.err
}

// Reader decodes records from a trace file
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a reader over r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the trace
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode trace record: %w", err)
	}
	if rec.Kind == KindFrame && len(rec.Channels) != sbus.NumChannels {
		return nil, fmt.Errorf("trace record at tick %d: expected %d channels, got %d",
			rec.Tick, sbus.NumChannels, len(rec.Channels))
	}
	return &rec, nil
}

// ReadAll decodes every record in r
func ReadAll(r io.Reader) ([]*Record, error) {
	reader := NewReader(r)
	var records []*Record
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// FormatRecord renders a record for the trace command
func FormatRecord(r *Record) string {
	timestamp := time.UnixMilli(r.TimeMs).Format("15:04:05.000")
	if r.Kind == KindPhase {
		return fmt.Sprintf("[%s] === %s (tick %d) ===", timestamp, r.PhaseName(), r.Tick)
	}

	var ch sbus.Channels
	copy(ch[:], r.Channels)
	return fmt.Sprintf("[%s] #%05d %-19s %s", timestamp, r.Tick, r.PhaseName(), sbus.FormatControls(ch))
}
