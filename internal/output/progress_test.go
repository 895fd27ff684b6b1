package output

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/encoder"
)

func TestProgressBar_String(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		current int
		want    string
	}{
		{"empty", 10, 0, "[          ]   0%"},
		{"half", 10, 5, "[====>     ]  50%"},
		{"full", 10, 10, "[=========>] 100%"},
		{"over limit", 10, 15, "[=========>] 100%"},
		{"negative", 10, -3, "[          ]   0%"},
		{"zero total", 0, 0, "[=========>] 100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgress(tt.total, "test")
			p.SetWriter(&bytes.Buffer{})
			p.SetWidth(10)
			p.SetCurrent(tt.current)

			if got := p.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressBar_Increment(t *testing.T) {
	p := NewProgress(4, "steps")
	p.SetWriter(&bytes.Buffer{})
	p.SetWidth(4)

	p.Increment()
	p.Increment()
	if got := p.String(); !strings.Contains(got, "50%") {
		t.Errorf("after 2/4 increments String() = %q, want 50%%", got)
	}
}

func TestProgressBar_NonTTYWritesOnceOnFinish(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(3, "mining")
	p.SetWriter(buf)

	p.SetCurrent(1)
	p.SetCurrent(2)
	if buf.Len() != 0 {
		t.Errorf("non-TTY bar should stay silent before finishing, got %q", buf.String())
	}

	p.Finish()
	p.Finish()

	output := buf.String()
	if strings.Count(output, "\n") != 1 {
		t.Errorf("expected exactly one line, got %q", output)
	}
	if !strings.Contains(output, "100%") || !strings.Contains(output, "mining") {
		t.Errorf("final line = %q, want 100%% and description", output)
	}
}

func TestLevelProgress(t *testing.T) {
	m, err := encoder.Encode(dataset.Demo())
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	buf := &bytes.Buffer{}
	bar := NewProgress(len(m.Items()), "mining")
	bar.SetWriter(buf)

	_, err = apriori.Mine(context.Background(), m, apriori.Options{
		MinSupport: 0.3,
		OnLevel:    LevelProgress(bar),
	})
	if err != nil {
		t.Fatalf("Mine() failed: %v", err)
	}
	bar.Finish()

	output := buf.String()
	if !strings.Contains(output, "level 3") {
		t.Errorf("expected last level description, got %q", output)
	}
}

func TestProgressBar_Concurrent(t *testing.T) {
	p := NewProgress(1000, "concurrent")
	p.SetWriter(&bytes.Buffer{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Increment()
			}
		}()
	}
	wg.Wait()

	if got := p.String(); !strings.Contains(got, "100%") {
		t.Errorf("String() = %q, want 100%%", got)
	}
}

func TestSpinner_NonTTYPrintsOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Mining itemsets")
	s.SetWriter(buf)

	s.Start()
	s.Start()
	s.UpdateMessage("Generating rules")
	s.Stop()

	if got := buf.String(); got != "Mining itemsets...\n" {
		t.Errorf("output = %q, want a single message line", got)
	}
}

func TestSpinner_MultipleStops(t *testing.T) {
	s := NewSpinner("Test")
	s.SetWriter(&bytes.Buffer{})

	// Stopping before and after starting must not panic.
	s.Stop()
	s.Start()
	s.Stop()
	s.Stop()
}

func TestSpinner_StopWithMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Working")
	s.SetWriter(buf)

	s.Start()
	s.StopWithMessage("Done!")

	if !strings.HasSuffix(buf.String(), "Done!\n") {
		t.Errorf("output = %q, want final message", buf.String())
	}
}

func BenchmarkProgressBar_String(b *testing.B) {
	p := NewProgress(100, "bench")
	p.SetWriter(&bytes.Buffer{})
	p.SetCurrent(42)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.String()
	}
}
