// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/sbusctl/pkg/sbus"
	"github.com/Thermoquad/sbusctl/pkg/sequence"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Messages
type armPhaseMsg sequence.PhaseEvent
type armFrameMsg sequence.FrameEvent
type armDoneMsg struct {
	report *sequence.Report
	err    error
}

// armModel is the TUI model for arm_test --tui
type armModel struct {
	connInfo string
	stages   []sequence.Stage
	total    int
	cancel   context.CancelFunc
	spinner  spinner.Model
	progress progress.Model
	phase    sequence.Phase
	frames   int
	channels sbus.Channels
	frameHex string
	started  time.Time
	aborting bool
	done     bool
	err      error
	width    int
}

func newArmModel(stages []sequence.Stage, connInfo string, cancel context.CancelFunc) armModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	return armModel{
		connInfo: connInfo,
		stages:   stages,
		total:    sequence.TotalTicks(stages),
		cancel:   cancel,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		channels: sbus.NewChannelBank().Snapshot(),
		started:  time.Now(),
		width:    80,
	}
}

func (m armModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m armModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.done {
				return m, tea.Quit
			}
			// Stop sending; wait for the sequencer to return before quitting
			m.aborting = true
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 20; w > 10 {
			m.progress.Width = w
		}

	case armPhaseMsg:
		if msg.Phase > m.phase {
			m.phase = msg.Phase
		}

	case armFrameMsg:
		if msg.Phase > m.phase {
			m.phase = msg.Phase
		}
		m.frames = msg.Tick + 1
		m.channels = msg.Channels
		m.frameHex = sbus.FormatFrame(msg.Frame)

	case armDoneMsg:
		m.done = true
		m.err = msg.err
		if msg.report != nil {
			m.frames = msg.report.Frames
			m.channels = msg.report.Final
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m armModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	doneStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	activeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11")).
		Bold(true)

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder

	s.WriteString(titleStyle.Render("sbusctl - Arm and Spin Test"))
	s.WriteString("\n\n")
	s.WriteString(labelStyle.Render("Connection: ") + valueStyle.Render(m.connInfo) + "\n")
	s.WriteString(labelStyle.Render("Elapsed:    ") + valueStyle.Render(time.Since(m.started).Round(time.Second).String()) + "\n\n")

	// Phase list
	var phases strings.Builder
	for _, st := range m.stages {
		line := fmt.Sprintf("%-19s %5d", st.Phase, st.Ticks())
		switch {
		case st.Phase < m.phase || m.phase == sequence.PhaseDone:
			phases.WriteString(doneStyle.Render("  ✓ " + line))
		case st.Phase == m.phase && !m.done:
			phases.WriteString(activeStyle.Render(m.spinner.View() + " " + line))
		default:
			phases.WriteString("    " + line)
		}
		phases.WriteString("\n")
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(phases.String(), "\n")))
	s.WriteString("\n\n")

	percent := 0.0
	if m.total > 0 {
		percent = float64(m.frames) / float64(m.total)
	}
	s.WriteString(m.progress.ViewAs(percent))
	s.WriteString(fmt.Sprintf(" %d/%d\n\n", m.frames, m.total))

	s.WriteString(labelStyle.Render("Channels: ") + valueStyle.Render(sbus.FormatControls(m.channels)) + "\n")
	if m.frameHex != "" {
		s.WriteString(labelStyle.Render("Frame:    ") + doneStyle.Render(m.frameHex) + "\n")
	}
	s.WriteString("\n")

	switch {
	case m.err != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("ABORTED: %v", m.err)) + "\n")
	case m.done:
		s.WriteString(valueStyle.Render("Test complete") + "\n")
	case m.aborting:
		s.WriteString(errorStyle.Render("Stopping...") + "\n")
	default:
		s.WriteString(m.phase.Description() + "\n")
	}
	s.WriteString(doneStyle.Render("q: abort") + "\n")

	return s.String()
}

// tuiRelay forwards sequencer events to the program from its own
// goroutine, so a slow redraw never holds up the next frame. Phase events
// are all delivered; frame events keep only the latest one.
type tuiRelay struct {
	send   func(tea.Msg)
	phases chan armPhaseMsg
	frames chan armFrameMsg
	quit   chan struct{}
	done   chan struct{}
}

func newTUIRelay(send func(tea.Msg), stages int) *tuiRelay {
	return &tuiRelay{
		send: send,
		// Every stage plus PhaseDone fits, so phase events never block
		phases: make(chan armPhaseMsg, stages+1),
		frames: make(chan armFrameMsg, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (r *tuiRelay) observer() sequence.Observer {
	return sequence.ObserverFuncs{
		OnPhase: func(ev sequence.PhaseEvent) { r.phases <- armPhaseMsg(ev) },
		OnFrame: func(ev sequence.FrameEvent) {
			// Frames arrive every tick; redraw on step boundaries only
			if ev.PhaseTick%sequence.RampTicksPerStep != 0 {
				return
			}
			msg := armFrameMsg(ev)
			select {
			case r.frames <- msg:
				return
			default:
			}
			// Replace the stale frame the program has not picked up yet
			select {
			case <-r.frames:
			default:
			}
			select {
			case r.frames <- msg:
			default:
			}
		},
	}
}

func (r *tuiRelay) run() {
	defer close(r.done)
	for {
		// Phase events go first so the phase list never lags the frames
		select {
		case msg := <-r.phases:
			r.send(msg)
			continue
		default:
		}

		select {
		case <-r.quit:
			return
		case msg := <-r.phases:
			r.send(msg)
		case msg := <-r.frames:
			r.send(msg)
		}
	}
}

func (r *tuiRelay) stop() {
	close(r.quit)
	<-r.done
}

// runArmTUI runs the sequencer behind a bubbletea progress view. The
// sequencer always returns before this function does.
func runArmTUI(ctx context.Context, conn Connection, connInfo string, opts []sequence.Option) (*sequence.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stages := sequence.DefaultStages()
	m := newArmModel(stages, connInfo, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen())

	relay := newTUIRelay(p.Send, len(stages))
	opts = append(opts, sequence.WithObserver(relay.observer()))

	seq, err := sequence.New(conn, append(opts, sequence.WithStages(stages))...)
	if err != nil {
		return nil, err
	}

	go relay.run()
	defer relay.stop()

	done := make(chan armDoneMsg, 1)
	go func() {
		report, err := seq.Run(ctx)
		result := armDoneMsg{report: report, err: err}
		done <- result
		p.Send(result)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("TUI error: %v", err)
	}

	// The model only quits on armDoneMsg, but make sure of it
	cancel()
	result := <-done
	return result.report, result.err
}
