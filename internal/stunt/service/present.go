package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/louisbranch/improv.engine/internal/core/check"
)

// Summary is the user-facing result of one resolved stunt.
type Summary struct {
	System     string
	ActorName  string
	TargetName string
	Formula    string
	Total      int
	Difficulty int
	Degree     check.Degree
	// Outcomes lists applied effects in human-readable form.
	Outcomes []string
	// Deferred names a native mechanism left to finish the resolution.
	Deferred string
	// Notices carries resource-consumption messages.
	Notices []string
}

// Presenter renders a summary to the user-facing channel. Hosts plug in
// their chat-card renderer; WriterPresenter serves logs and the scenario
// runner.
type Presenter interface {
	Present(ctx context.Context, summary Summary) error
}

// WriterPresenter renders summaries as plain text. Non-GM output masks the
// difficulty so players never learn the target number.
type WriterPresenter struct {
	mu sync.Mutex
	w  io.Writer
	gm bool
}

// NewWriterPresenter creates a presenter writing to w. gm controls whether
// the difficulty is shown or masked.
func NewWriterPresenter(w io.Writer, gm bool) *WriterPresenter {
	return &WriterPresenter{w: w, gm: gm}
}

// Present implements Presenter.
func (p *WriterPresenter) Present(_ context.Context, summary Summary) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	difficulty := "??"
	if p.gm {
		difficulty = fmt.Sprintf("%d", summary.Difficulty)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s attempts a stunt", summary.ActorName)
	if summary.TargetName != "" {
		fmt.Fprintf(&b, " against %s", summary.TargetName)
	}
	fmt.Fprintf(&b, "\n  %s = %d vs %s: %s\n", summary.Formula, summary.Total, difficulty, summary.Degree)
	for _, outcome := range summary.Outcomes {
		fmt.Fprintf(&b, "  applied: %s\n", outcome)
	}
	if summary.Deferred != "" {
		fmt.Fprintf(&b, "  %s\n", summary.Deferred)
	}
	for _, notice := range summary.Notices {
		fmt.Fprintf(&b, "  %s\n", notice)
	}

	_, err := io.WriteString(p.w, b.String())
	return err
}
