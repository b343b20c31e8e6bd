package school

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeSelector struct {
	mu           sync.Mutex
	branches     map[string][]Branch
	selectErr    error
	listErr      error
	selectCalls  []string
	listCalls    []string
	selectedID   string
	blockSelect  chan struct{} // when set, SelectSchool blocks until closed
	selectSignal chan struct{} // closed once SelectSchool has been entered
}

func (s *fakeSelector) SelectSchool(_ context.Context, schoolID string) error {
	s.mu.Lock()
	s.selectCalls = append(s.selectCalls, schoolID)
	block, signal := s.blockSelect, s.selectSignal
	s.mu.Unlock()

	if signal != nil {
		close(signal)
		s.mu.Lock()
		s.selectSignal = nil
		s.mu.Unlock()
	}
	if block != nil {
		<-block
	}
	if s.selectErr != nil {
		return s.selectErr
	}
	s.mu.Lock()
	s.selectedID = schoolID
	s.mu.Unlock()
	return nil
}

func (s *fakeSelector) ListBranches(_ context.Context, schoolID string) ([]Branch, error) {
	s.mu.Lock()
	s.listCalls = append(s.listCalls, schoolID)
	s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.branches[schoolID], nil
}

func TestFlow_selectSchoolAdvancesToBranchStep(t *testing.T) {
	sel := &fakeSelector{branches: map[string][]Branch{
		"sch-a": {{ID: "br-1", SchoolID: "sch-a", Name: "Main", IsHeadquarters: true}},
	}}
	flow := NewFlow(sel, "/en/admin-panel/users")

	assert.Equal(t, StepSchool, flow.Step())

	if err := flow.SelectSchool(context.Background(), "sch-a"); err != nil {
		t.Fatalf("SelectSchool() failed: %v", err)
	}
	assert.Equal(t, StepBranch, flow.Step())
	assert.Equal(t, Selection{SchoolID: "sch-a"}, flow.Selection())
	assert.Len(t, flow.Branches(), 1)

	// branch refresh was initiated strictly after the selection resolved
	assert.Equal(t, []string{"sch-a"}, sel.selectCalls)
	assert.Equal(t, []string{"sch-a"}, sel.listCalls)
}

func TestFlow_switchingSchoolClearsBranch(t *testing.T) {
	sel := &fakeSelector{branches: map[string][]Branch{
		"sch-a": {{ID: "br-a1", SchoolID: "sch-a"}},
		"sch-b": {{ID: "br-b1", SchoolID: "sch-b"}, {ID: "br-b2", SchoolID: "sch-b"}},
	}}
	flow := NewFlow(sel, "/en")

	if err := flow.SelectSchool(context.Background(), "sch-a"); err != nil {
		t.Fatalf("SelectSchool(sch-a) failed: %v", err)
	}
	flow.Back()
	if err := flow.SelectSchool(context.Background(), "sch-b"); err != nil {
		t.Fatalf("SelectSchool(sch-b) failed: %v", err)
	}

	// stale branch must never survive a school switch
	assert.Equal(t, Selection{SchoolID: "sch-b"}, flow.Selection())

	// the branch list is scoped to sch-b only, no residual sch-a branches
	for _, br := range flow.Branches() {
		assert.Equal(t, "sch-b", br.SchoolID)
	}
	assert.Equal(t, []string{"sch-a", "sch-b"}, sel.listCalls)
}

func TestFlow_reselectingSameSchoolIsIdempotent(t *testing.T) {
	sel := &fakeSelector{branches: map[string][]Branch{
		"sch-a": {{ID: "br-1", SchoolID: "sch-a"}},
	}}
	flow := NewFlow(sel, "/en")

	if err := flow.SelectSchool(context.Background(), "sch-a"); err != nil {
		t.Fatalf("SelectSchool() failed: %v", err)
	}
	flow.Back()
	if err := flow.SelectSchool(context.Background(), "sch-a"); err != nil {
		t.Fatalf("SelectSchool() failed: %v", err)
	}

	// no additional selector or branch-list call
	assert.Equal(t, []string{"sch-a"}, sel.selectCalls)
	assert.Equal(t, []string{"sch-a"}, sel.listCalls)
	assert.Equal(t, StepBranch, flow.Step())
}

func TestFlow_failedSelectionStaysOnSchoolStep(t *testing.T) {
	sel := &fakeSelector{selectErr: errors.New("boom")}
	flow := NewFlow(sel, "/en")

	err := flow.SelectSchool(context.Background(), "sch-a")
	assert.Error(t, err)

	// transition aborted: still on school step, highlight cleared, nothing committed
	assert.Equal(t, StepSchool, flow.Step())
	assert.Equal(t, "", flow.Highlighted())
	assert.Equal(t, Selection{}, flow.Selection())
	assert.False(t, flow.Finished())
	assert.Empty(t, sel.listCalls)
}

func TestFlow_selectBranchFinishes(t *testing.T) {
	sel := &fakeSelector{branches: map[string][]Branch{
		"sch-a": {{ID: "br-1", SchoolID: "sch-a"}, {ID: "br-2", SchoolID: "sch-a"}},
	}}
	flow := NewFlow(sel, "/en/admin-panel")

	if err := flow.SelectSchool(context.Background(), "sch-a"); err != nil {
		t.Fatalf("SelectSchool() failed: %v", err)
	}
	returnTo, err := flow.SelectBranch("br-2")
	if err != nil {
		t.Fatalf("SelectBranch() failed: %v", err)
	}
	assert.Equal(t, "/en/admin-panel", returnTo)
	assert.Equal(t, Selection{SchoolID: "sch-a", BranchID: "br-2"}, flow.Selection())
	assert.True(t, flow.Finished())
}

func TestFlow_selectBranchRejectsForeignBranch(t *testing.T) {
	sel := &fakeSelector{branches: map[string][]Branch{
		"sch-a": {{ID: "br-1", SchoolID: "sch-a"}},
	}}
	flow := NewFlow(sel, "/en")

	if err := flow.SelectSchool(context.Background(), "sch-a"); err != nil {
		t.Fatalf("SelectSchool() failed: %v", err)
	}
	_, err := flow.SelectBranch("br-of-another-school")
	assert.Equal(t, ErrUnknownBranch, errors.Cause(err))
	assert.False(t, flow.Finished())
}

func TestFlow_zeroBranchesContinues(t *testing.T) {
	sel := &fakeSelector{branches: map[string][]Branch{}} // school without branches
	flow := NewFlow(sel, "/en/staff-portal")

	if err := flow.SelectSchool(context.Background(), "sch-a"); err != nil {
		t.Fatalf("SelectSchool() failed: %v", err)
	}
	assert.Empty(t, flow.Branches())

	returnTo, err := flow.SkipBranch()
	if err != nil {
		t.Fatalf("SkipBranch() failed: %v", err)
	}
	assert.Equal(t, "/en/staff-portal", returnTo)
	assert.Equal(t, Selection{SchoolID: "sch-a"}, flow.Selection())
	assert.True(t, flow.Finished())
}

func TestFlow_branchActionsRequireSchool(t *testing.T) {
	flow := NewFlow(&fakeSelector{}, "/en")

	if _, err := flow.SelectBranch("br-1"); errors.Cause(err) != ErrNoSchoolSelected {
		t.Errorf("SelectBranch() error = %v, want %v", err, ErrNoSchoolSelected)
	}
	if _, err := flow.SkipBranch(); errors.Cause(err) != ErrNoSchoolSelected {
		t.Errorf("SkipBranch() error = %v, want %v", err, ErrNoSchoolSelected)
	}
}

func TestFlow_backKeepsCommittedSelection(t *testing.T) {
	sel := &fakeSelector{branches: map[string][]Branch{
		"sch-a": {{ID: "br-1", SchoolID: "sch-a"}},
	}}
	flow := NewFlow(sel, "/en")

	if err := flow.SelectSchool(context.Background(), "sch-a"); err != nil {
		t.Fatalf("SelectSchool() failed: %v", err)
	}
	flow.Back()

	// only the visible step rewinds; the commit survives
	assert.Equal(t, StepSchool, flow.Step())
	assert.Equal(t, "", flow.Highlighted())
	assert.Equal(t, Selection{SchoolID: "sch-a"}, flow.Selection())
}

func TestFlow_refusesConcurrentSelection(t *testing.T) {
	block := make(chan struct{})
	entered := make(chan struct{})
	sel := &fakeSelector{
		branches:     map[string][]Branch{},
		blockSelect:  block,
		selectSignal: entered,
	}
	flow := NewFlow(sel, "/en")

	errc := make(chan error, 1)
	go func() { errc <- flow.SelectSchool(context.Background(), "sch-a") }()
	<-entered

	// a second selection while one is in flight is refused
	err := flow.SelectSchool(context.Background(), "sch-b")
	assert.Equal(t, ErrSelectionInFlight, errors.Cause(err))
	assert.True(t, flow.Pending())

	close(block)
	if err := <-errc; err != nil {
		t.Fatalf("SelectSchool() failed: %v", err)
	}
	assert.False(t, flow.Pending())
	assert.Equal(t, Selection{SchoolID: "sch-a"}, flow.Selection())
}
