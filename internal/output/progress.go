package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/cartrules/internal/apriori"
)

// writerIsTTY reports whether w is a file descriptor attached to a terminal.
// Plain io.Writer values such as *bytes.Buffer are never terminals.
func writerIsTTY(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}

// ProgressBar draws a bounded progress bar.
// Example: [=========>          ]  45% level 3: 12 candidates
//
// On a terminal the bar redraws in place. Elsewhere a single line is
// written when the bar completes.
type ProgressBar struct {
	mu          sync.Mutex
	total       int
	current     int
	width       int
	description string
	writer      io.Writer
	done        bool
}

// NewProgress creates a progress bar writing to stderr.
func NewProgress(total int, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		width:       30,
		description: description,
		writer:      os.Stderr,
	}
}

// SetWriter sets the output writer (useful for testing).
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// SetWidth sets the width of the bar in characters.
func (p *ProgressBar) SetWidth(width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width = width
}

// Increment advances the bar by one step.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(p.current + 1)
}

// SetCurrent moves the bar to current, clamped to [0, total].
func (p *ProgressBar) SetCurrent(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(current)
}

// Describe replaces the text shown after the bar.
func (p *ProgressBar) Describe(description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.description = description
	if writerIsTTY(p.writer) {
		p.render()
	}
}

// Finish fills the bar and ends the line. Further calls are no-ops.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}
	p.done = true

	// A terminal bar that already reached total has drawn its last line.
	if writerIsTTY(p.writer) && p.current == p.total && p.total > 0 {
		return
	}
	p.current = p.total
	p.render()
}

func (p *ProgressBar) setLocked(current int) {
	if current < 0 {
		current = 0
	}
	if current > p.total {
		current = p.total
	}
	p.current = current
	if writerIsTTY(p.writer) {
		p.render()
	}
}

// String returns the bar without description, e.g. "[=====>    ]  50%".
func (p *ProgressBar) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar()
}

func (p *ProgressBar) bar() string {
	percent, filled := 100, p.width
	if p.total > 0 {
		percent = p.current * 100 / p.total
		filled = p.current * p.width / p.total
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if filled > 0 {
		sb.WriteString(strings.Repeat("=", filled-1))
		sb.WriteByte('>')
	}
	sb.WriteString(strings.Repeat(" ", p.width-filled))
	sb.WriteByte(']')
	return fmt.Sprintf("%s %3d%%", sb.String(), percent)
}

// render must be called with the lock held.
func (p *ProgressBar) render() {
	if writerIsTTY(p.writer) {
		fmt.Fprintf(p.writer, "\r%s %s", p.bar(), p.description)
		if p.current == p.total {
			fmt.Fprintln(p.writer)
		}
		return
	}
	if p.current == p.total {
		fmt.Fprintf(p.writer, "%s %s\n", p.bar(), p.description)
	}
}

// LevelProgress returns an apriori OnLevel callback that advances bar by
// one step per completed level and describes the level just counted.
func LevelProgress(bar *ProgressBar) func(apriori.LevelStat) {
	return func(l apriori.LevelStat) {
		bar.Describe(fmt.Sprintf("level %d: %d candidates, %d frequent", l.Size, l.Candidates, l.Frequent))
		bar.SetCurrent(l.Size)
	}
}

// Spinner shows an animated indicator for work of unknown length.
// Example: |  Mining itemsets (3s elapsed)
//
// On a non-TTY writer the message is printed once and nothing animates.
type Spinner struct {
	mu      sync.Mutex
	message string
	writer  io.Writer
	running bool
	started time.Time
	stop    chan struct{}
	stopped chan struct{}
}

var spinnerFrames = []string{"|", "/", "-", "\\"}

// NewSpinner creates a spinner writing to stderr. Call Start to show it.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		writer:  os.Stderr,
	}
}

// SetWriter sets the output writer (useful for testing).
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the animation. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.started = time.Now()

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.animate(s.stop, s.stopped)
}

func (s *Spinner) animate(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			fmt.Fprintf(s.writer, "\r%s  %s (%ds elapsed)",
				spinnerFrames[frame%len(spinnerFrames)], s.message, int(time.Since(s.started).Seconds()))
			s.mu.Unlock()
		}
	}
}

// UpdateMessage changes the text shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop ends the animation and clears the line. Stopping twice is safe.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, stopped := s.stop, s.stopped
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+24))
}

// StopWithMessage stops the spinner and prints a final line.
func (s *Spinner) StopWithMessage(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, message)
}
