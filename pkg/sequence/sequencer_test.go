// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sequence

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Thermoquad/sbusctl/pkg/sbus"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	frames [][]byte
	failAt int // fail the write with this 0-based index, -1 never
	short  bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{failAt: -1}
}

var errLinkDown = errors.New("device disconnected")

func (r *recordingTransport) Write(p []byte) (int, error) {
	if r.failAt >= 0 && len(r.frames) == r.failAt {
		return 0, errLinkDown
	}
	frame := make([]byte, len(p))
	copy(frame, p)
	r.frames = append(r.frames, frame)
	if r.short {
		return len(p) - 1, nil
	}
	return len(p), nil
}

type spyIndicator struct {
	states []bool
}

func (s *spyIndicator) SetState(on bool) {
	s.states = append(s.states, on)
}

type eventLog struct {
	phases []PhaseEvent
	frames []FrameEvent
}

func (l *eventLog) PhaseStarted(ev PhaseEvent) { l.phases = append(l.phases, ev) }
func (l *eventLog) FrameSent(ev FrameEvent)    { l.frames = append(l.frames, ev) }

func runDefault(t *testing.T, transport io.Writer, opts ...Option) (*Report, *eventLog, *spyIndicator, error) {
	log := &eventLog{}
	ind := &spyIndicator{}
	opts = append([]Option{
		WithTicker(&ImmediateTicker{}),
		WithIndicator(ind),
		WithObserver(log),
	}, opts...)
	seq, err := New(transport, opts...)
	require.NoError(t, err)
	report, err := seq.Run(context.Background())
	return report, log, ind, err
}

func TestRunSendsEveryTick(t *testing.T) {
	transport := newRecordingTransport()
	ticker := &ImmediateTicker{}
	report, _, _, err := runDefault(t, transport, WithTicker(ticker))
	require.NoError(t, err)

	require.True(t, report.Completed)
	require.Equal(t, 3250, report.Frames)
	require.Len(t, transport.frames, 3250)
	require.Equal(t, 3250, ticker.Waits)
	for phase, n := range report.PhaseTicks {
		expected := 0
		for _, st := range DefaultStages() {
			if st.Phase == phase {
				expected = st.Ticks()
			}
		}
		require.Equal(t, expected, n, "phase %s", phase)
	}
}

func TestRunPhaseOrder(t *testing.T) {
	_, log, _, err := runDefault(t, newRecordingTransport())
	require.NoError(t, err)

	expected := []Phase{
		PhaseNeutral, PhaseArming, PhaseArmedHold, PhaseThrottleRampUp,
		PhaseThrottleHold, PhaseThrottleRampDown, PhaseThrottleFloorHold,
		PhaseDisarming, PhaseDisarmedHold, PhaseDone,
	}
	require.Len(t, log.phases, len(expected))
	for i, ev := range log.phases {
		require.Equal(t, expected[i], ev.Phase)
		require.Equal(t, i, ev.Stage)
	}

	// Frames never go back to an earlier phase
	prev := PhaseNeutral
	for _, ev := range log.frames {
		require.GreaterOrEqual(t, int(ev.Phase), int(prev))
		prev = ev.Phase
	}
}

func TestRunChannelTargets(t *testing.T) {
	report, log, _, err := runDefault(t, newRecordingTransport())
	require.NoError(t, err)

	byPhase := map[Phase][]sbus.Channels{}
	for _, ev := range log.frames {
		byPhase[ev.Phase] = append(byPhase[ev.Phase], ev.Channels)
	}

	for _, ch := range byPhase[PhaseNeutral] {
		require.EqualValues(t, 992, ch[sbus.ChannelRoll])
		require.EqualValues(t, 992, ch[sbus.ChannelPitch])
		require.EqualValues(t, 172, ch[sbus.ChannelThrottle])
		require.EqualValues(t, 992, ch[sbus.ChannelYaw])
		require.EqualValues(t, 172, ch[sbus.ChannelAux1])
		require.EqualValues(t, 172, ch[sbus.ChannelAux2])
	}
	for _, ch := range byPhase[PhaseArming] {
		require.EqualValues(t, 172, ch[sbus.ChannelThrottle])
		require.EqualValues(t, 1811, ch[sbus.ChannelYaw])
	}
	for _, ch := range byPhase[PhaseArmedHold] {
		require.EqualValues(t, 992, ch[sbus.ChannelYaw])
	}

	up := byPhase[PhaseThrottleRampUp]
	require.EqualValues(t, 172, up[0][sbus.ChannelThrottle])
	require.EqualValues(t, 1397, up[len(up)-1][sbus.ChannelThrottle])
	for i := 1; i < len(up); i++ {
		require.GreaterOrEqual(t, up[i][sbus.ChannelThrottle], up[i-1][sbus.ChannelThrottle])
	}

	for _, ch := range byPhase[PhaseThrottleHold] {
		require.EqualValues(t, 1400, ch[sbus.ChannelThrottle])
	}

	down := byPhase[PhaseThrottleRampDown]
	require.EqualValues(t, 1400, down[0][sbus.ChannelThrottle])
	require.EqualValues(t, 175, down[len(down)-1][sbus.ChannelThrottle])
	for i := 1; i < len(down); i++ {
		require.LessOrEqual(t, down[i][sbus.ChannelThrottle], down[i-1][sbus.ChannelThrottle])
	}

	for _, ch := range byPhase[PhaseThrottleFloorHold] {
		require.EqualValues(t, 172, ch[sbus.ChannelThrottle])
	}
	for _, ch := range byPhase[PhaseDisarming] {
		require.EqualValues(t, 172, ch[sbus.ChannelThrottle])
		require.EqualValues(t, 172, ch[sbus.ChannelYaw])
	}
	for _, ch := range byPhase[PhaseDisarmedHold] {
		require.EqualValues(t, 992, ch[sbus.ChannelYaw])
	}

	require.EqualValues(t, 172, report.Final[sbus.ChannelThrottle])
	require.EqualValues(t, 992, report.Final[sbus.ChannelYaw])
}

func TestRunWritesEncodedFrames(t *testing.T) {
	transport := newRecordingTransport()
	_, log, _, err := runDefault(t, transport)
	require.NoError(t, err)
	require.Len(t, log.frames, len(transport.frames))

	for i, ev := range log.frames {
		f := sbus.Encode(ev.Channels)
		require.True(t, bytes.Equal(f[:], transport.frames[i]), "frame %d", i)
		require.Equal(t, i, ev.Tick)
	}
}

func TestRunIndicatorBlinks(t *testing.T) {
	_, _, ind, err := runDefault(t, newRecordingTransport())
	require.NoError(t, err)

	// 14 toggles in neutral, 7 at throttle hold, then forced off
	require.Len(t, ind.states, 22)
	for i := 0; i < 21; i++ {
		require.Equal(t, i%2 == 0, ind.states[i], "toggle %d", i)
	}
	require.False(t, ind.states[len(ind.states)-1])
}

func TestRunTransportFailure(t *testing.T) {
	transport := newRecordingTransport()
	transport.failAt = 200 // inside Arming (ticks 140-289)

	report, log, ind, err := runDefault(t, transport)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTransportFailed))
	require.True(t, errors.Is(err, errLinkDown))

	var tErr *TransportError
	require.True(t, errors.As(err, &tErr))
	require.Equal(t, PhaseArming, tErr.Phase)
	require.Equal(t, 200, tErr.Tick)

	require.False(t, report.Completed)
	require.Equal(t, 200, report.Frames)
	require.Len(t, log.frames, 200)
	require.NotEqual(t, PhaseDone, log.phases[len(log.phases)-1].Phase)
	require.False(t, ind.states[len(ind.states)-1])
}

func TestRunShortWrite(t *testing.T) {
	transport := newRecordingTransport()
	transport.short = true

	_, _, _, err := runDefault(t, transport)
	require.True(t, errors.Is(err, ErrTransportFailed))
	require.True(t, errors.Is(err, io.ErrShortWrite))
}

type cancelTicker struct {
	cancel context.CancelFunc
	after  int
	waits  int
}

func (c *cancelTicker) Wait(ctx context.Context) error {
	c.waits++
	if c.waits == c.after {
		c.cancel()
	}
	return ctx.Err()
}

func (c *cancelTicker) Stop() {}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ind := &spyIndicator{}
	seq, err := New(newRecordingTransport(),
		WithTicker(&cancelTicker{cancel: cancel, after: 5}),
		WithIndicator(ind),
	)
	require.NoError(t, err)

	report, err := seq.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 5, report.Frames)
	require.False(t, report.Completed)
	require.False(t, ind.states[len(ind.states)-1])
}

func TestRunOnlyOnce(t *testing.T) {
	seq, err := New(newRecordingTransport(), WithTicker(&ImmediateTicker{}))
	require.NoError(t, err)

	_, err = seq.Run(context.Background())
	require.NoError(t, err)

	report, err := seq.Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRun)
	require.Nil(t, report)
}

func TestNewRejectsInvalidStages(t *testing.T) {
	_, err := New(io.Discard, WithStages([]Stage{{Phase: PhaseDone}}))
	require.ErrorIs(t, err, ErrInvalidStages)
}

func TestRunSingleStage(t *testing.T) {
	// Each stage can be exercised in isolation against a prepared bank
	for _, st := range DefaultStages() {
		st := st
		t.Run(st.Phase.String(), func(t *testing.T) {
			bank := sbus.NewChannelBank()
			transport := newRecordingTransport()
			seq, err := New(transport,
				WithStages([]Stage{st}),
				WithBank(bank),
				WithTicker(&ImmediateTicker{}),
			)
			require.NoError(t, err)

			report, err := seq.Run(context.Background())
			require.NoError(t, err)
			require.Equal(t, st.Ticks(), report.Frames)
			require.Equal(t, []Phase{st.Phase, PhaseDone}, report.Phases)

			for _, a := range st.Set {
				if st.Ramp == nil || st.Ramp.Channel != a.Channel {
					require.EqualValues(t, a.Value, bank.Get(a.Channel))
				}
			}
			if st.Ramp != nil {
				require.EqualValues(t, st.Ramp.Last(), bank.Get(st.Ramp.Channel))
			}
		})
	}
}

func TestObserverFuncs(t *testing.T) {
	phases := 0
	frames := 0
	obs := ObserverFuncs{
		OnPhase: func(PhaseEvent) { phases++ },
		OnFrame: func(FrameEvent) { frames++ },
	}
	seq, err := New(io.Discard,
		WithStages([]Stage{{Phase: PhaseNeutral, Hold: 4}}),
		WithTicker(&ImmediateTicker{}),
		WithObserver(obs),
		WithObserver(ObserverFuncs{}),
	)
	require.NoError(t, err)

	_, err = seq.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, phases)
	require.Equal(t, 4, frames)
}

func TestFileIndicator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brightness")
	ind := NewFileIndicator(path)

	ind.SetState(true)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "1\n", string(data))

	ind.SetState(false)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "0\n", string(data))
}

func TestFileIndicatorMissingDirectory(t *testing.T) {
	ind := NewFileIndicator(filepath.Join(t.TempDir(), "missing", "brightness"))
	ind.SetState(true)
	ind.SetState(false)
	require.True(t, ind.failed)
}
