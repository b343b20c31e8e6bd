package school

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Step is a wizard step of the selection flow.
type Step int

const (
	StepSchool Step = iota
	StepBranch
)

func (s Step) String() string {
	if s == StepBranch {
		return "branch-step"
	}
	return "school-step"
}

var (
	ErrSelectionInFlight = errors.New("a selection is already in progress")
	ErrNoSchoolSelected  = errors.New("no school selected")
	ErrUnknownBranch     = errors.New("branch does not belong to the selected school")
	ErrFlowFinished      = errors.New("selection flow already finished")
)

// Selector performs the selection side effects on behalf of a Flow.
type Selector interface {
	// SelectSchool persists the school choice; on error nothing is committed.
	SelectSchool(ctx context.Context, schoolID string) error
	// ListBranches lists the branches of the given school only.
	ListBranches(ctx context.Context, schoolID string) ([]Branch, error)
}

// Flow drives the two-step school/branch selection wizard.
//
// The wizard starts on the school step. Choosing a school commits it through
// the Selector and only then advances to the branch step with that school's
// branches; a failed selection stays on the school step with the optimistic
// highlight cleared. Choosing a branch, skipping, or a school without branches
// finishes the flow and yields the return path. Going back only rewinds the
// visible step; the committed school survives until another school is chosen.
//
// A Flow is safe for concurrent use; while a selection is in flight any other
// selection is refused rather than queued.
type Flow struct {
	mu       sync.Mutex
	selector Selector
	returnTo string

	step        Step
	pending     bool
	finished    bool
	highlighted string // optimistic highlight, not yet committed
	selection   Selection
	branches    []Branch
}

// NewFlow returns a selection wizard that navigates to returnTo when done.
func NewFlow(selector Selector, returnTo string) *Flow {
	return &Flow{
		selector: selector,
		returnTo: returnTo,
		step:     StepSchool,
	}
}

func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

func (f *Flow) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *Flow) Finished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

// Highlighted returns the school currently marked as chosen in the UI;
// empty when nothing is chosen or the last selection failed.
func (f *Flow) Highlighted() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.highlighted
}

func (f *Flow) Selection() Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selection
}

// Branches returns the branch list of the committed school.
func (f *Flow) Branches() []Branch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branches
}

func (f *Flow) ReturnTo() string { return f.returnTo }

// SelectSchool commits the school choice and advances to the branch step.
// Re-selecting the already committed school performs no selector call.
func (f *Flow) SelectSchool(ctx context.Context, schoolID string) error {
	f.mu.Lock()
	if f.finished {
		f.mu.Unlock()
		return ErrFlowFinished
	}
	if f.pending {
		f.mu.Unlock()
		return ErrSelectionInFlight
	}

	// idempotent re-selection: the school is already committed
	if f.selection.SchoolID == schoolID && schoolID != "" {
		f.highlighted = schoolID
		f.step = StepBranch
		f.mu.Unlock()
		return nil
	}

	f.pending = true
	f.highlighted = schoolID
	f.mu.Unlock()

	err := f.selector.SelectSchool(ctx, schoolID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	if err != nil {
		// abort the transition: stay on the school step, clear the highlight
		f.highlighted = ""
		return err
	}

	// branch refresh starts strictly after the selection resolved
	f.selection = f.selection.WithSchool(schoolID)
	branches, err := f.selector.ListBranches(ctx, schoolID)
	if err != nil {
		// school is committed; surface the error and let the branch step retry
		f.branches = nil
		f.step = StepBranch
		return err
	}
	f.branches = branches
	f.step = StepBranch
	return nil
}

// SelectBranch finishes the flow with the given branch and returns the path
// to resume at. The branch must be in the committed school's branch list.
func (f *Flow) SelectBranch(branchID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.finished {
		return "", ErrFlowFinished
	}
	if f.step != StepBranch || !f.selection.HasSchool() {
		return "", ErrNoSchoolSelected
	}
	for _, br := range f.branches {
		if br.ID == branchID {
			f.selection = f.selection.WithBranch(branchID)
			f.finished = true
			return f.returnTo, nil
		}
	}
	return "", ErrUnknownBranch
}

// SkipBranch finishes the flow without a branch. It also serves the
// "continue" action of a school that has no branches at all.
func (f *Flow) SkipBranch() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.finished {
		return "", ErrFlowFinished
	}
	if f.step != StepBranch || !f.selection.HasSchool() {
		return "", ErrNoSchoolSelected
	}
	f.finished = true
	return f.returnTo, nil
}

// Back rewinds the wizard to the school step. The committed selection is kept;
// only re-selecting a school actually changes it.
func (f *Flow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished {
		return
	}
	f.step = StepSchool
	f.highlighted = ""
}
