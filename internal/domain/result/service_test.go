package result

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"kpitrack/internal/domain/access"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/kpi"
	"kpitrack/internal/domain/org"
)

// fakeStore mirrors the conditional-write semantics of the SQL store in
// memory: the lock check happens inside the write.
type fakeStore struct {
	results   map[Key]*Result
	positions map[int64]int64
	nextID    int64
}

func newFakeStore(positions map[int64]int64) *fakeStore {
	return &fakeStore{results: map[Key]*Result{}, positions: positions}
}

func (f *fakeStore) Get(_ context.Context, key Key) (*Result, error) {
	if r, ok := f.results[key]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeStore) ListForEmployee(_ context.Context, employeeID int64, period Period) ([]Result, error) {
	var out []Result
	for key, r := range f.results {
		if key.EmployeeID == employeeID && key.Period == period {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ensure(key Key) *Result {
	if r, ok := f.results[key]; ok {
		return r
	}
	f.nextID++
	r := &Result{
		ID:         f.nextID,
		EmployeeID: key.EmployeeID,
		KpiID:      key.KpiID,
		Year:       key.Period.Year,
		Month:      key.Period.Month,
		Grade:      kpi.GradeNone,
	}
	f.results[key] = r
	return r
}

func (f *fakeStore) unlocked(r *Result, unlock UnlockSet) bool {
	if !r.Approved {
		return true
	}
	if unlock.All {
		return true
	}
	if r.ApprovedBy == nil {
		return false
	}
	for _, id := range unlock.ApproverIDs {
		if id == *r.ApprovedBy {
			return true
		}
	}
	return false
}

func (f *fakeStore) CaptureValue(_ context.Context, key Key, value, grade string, score *float64, reason string, comment *string, unlock UnlockSet) (*Result, error) {
	if existing, ok := f.results[key]; ok && !f.unlocked(existing, unlock) {
		return nil, ErrLocked
	}
	r := f.ensure(key)
	r.Value = &value
	r.Grade = grade
	r.Score = score
	r.Reason = reason
	if comment != nil {
		r.Comment = *comment
	}
	copied := *r
	return &copied, nil
}

func (f *fakeStore) CaptureComment(_ context.Context, key Key, comment string, unlock UnlockSet) (*Result, error) {
	if existing, ok := f.results[key]; ok && !f.unlocked(existing, unlock) {
		return nil, ErrLocked
	}
	r := f.ensure(key)
	r.Comment = comment
	copied := *r
	return &copied, nil
}

func (f *fakeStore) Approve(_ context.Context, key Key, approverID int64, now time.Time) (*Result, error) {
	r := f.ensure(key)
	r.Approved = true
	if approverID != 0 {
		r.ApprovedBy = &approverID
	} else {
		r.ApprovedBy = nil
	}
	r.ApprovedAt = &now
	r.ReviewRequestedBy = nil
	r.ReviewRequestedAt = nil
	r.ReviewReason = nil
	copied := *r
	return &copied, nil
}

func (f *fakeStore) SendToReview(_ context.Context, key Key, requesterID int64, reason string, now time.Time) (*Result, error) {
	r := f.ensure(key)
	r.Approved = false
	r.ApprovedBy = nil
	r.ApprovedAt = nil
	if requesterID != 0 {
		r.ReviewRequestedBy = &requesterID
	}
	r.ReviewRequestedAt = &now
	r.ReviewReason = &reason
	copied := *r
	return &copied, nil
}

func (f *fakeStore) EmployeesInPositions(_ context.Context, positionIDs []int64) ([]int64, error) {
	var out []int64
	for employee, position := range f.positions {
		for _, id := range positionIDs {
			if id == position {
				out = append(out, employee)
			}
		}
	}
	return out, nil
}

type fakeKpis map[int64]*kpi.KPI

func (f fakeKpis) Get(_ context.Context, kpiID int64) (*kpi.KPI, error) {
	if k, ok := f[kpiID]; ok {
		return k, nil
	}
	return nil, kpi.ErrNotFound
}

type mapResolver map[int64]int64

func (m mapResolver) PositionOfEmployee(_ context.Context, employeeID int64) (int64, error) {
	return m[employeeID], nil
}

// Hierarchy: director(pos 1, emp 10) <- manager(pos 2, emp 20)
// <- cashier(pos 3, emp 30). KPI 5 is numeric, yellow 50 / green 80.
type fixture struct {
	svc    *Service
	store  *fakeStore
	policy *access.Policy
}

func newFixture() fixture {
	positions := map[int64]int64{10: 1, 20: 2, 30: 3}
	store := newFakeStore(positions)
	snap := org.BuildSnapshot([]org.Position{
		{ID: 1, Name: "Director"},
		{ID: 2, Name: "Manager", ReportsTo: 1},
		{ID: 3, Name: "Cashier", ReportsTo: 2},
	})
	yellow, green := 50.0, 80.0
	kpis := fakeKpis{5: {
		ID: 5, ScoreType: kpi.ScoreTypeNumber, Direction: kpi.DirectionHigherBetter,
		ThresholdYellow: &yellow, ThresholdGreen: &green,
	}}
	svc := NewService(store, kpis)
	svc.Now = func() time.Time { return time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, store: store, policy: access.New(snap, mapResolver(positions))}
}

var (
	director = access.Requester{EmployeeID: 10, Role: auth.RoleUser, PositionID: 1}
	manager  = access.Requester{EmployeeID: 20, Role: auth.RoleUser, PositionID: 2}
	cashier  = access.Requester{EmployeeID: 30, Role: auth.RoleUser, PositionID: 3}
	admin    = access.Requester{Role: auth.RoleAdmin}
	period   = Period{Year: 2025, Month: 5}
)

func strPtr(s string) *string { return &s }

func TestCaptureClassifiesValue(t *testing.T) {
	fx := newFixture()
	r, err := fx.svc.Capture(context.Background(), fx.policy, cashier, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Value: strPtr("85"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Grade != kpi.GradeGreen || r.Score == nil || *r.Score != kpi.ScoreGreen {
		t.Fatalf("unexpected classification: %+v", r)
	}
	if r.State() != StateOpen {
		t.Fatalf("fresh capture should be OPEN, got %s", r.State())
	}
}

func TestCaptureGradeOverrideSkipsClassifier(t *testing.T) {
	fx := newFixture()
	r, err := fx.svc.Capture(context.Background(), fx.policy, manager, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Value: strPtr("85"), GradeOverride: kpi.GradeRed,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Grade != kpi.GradeRed || r.Score == nil || *r.Score != kpi.ScoreRed {
		t.Fatalf("override not applied: %+v", r)
	}
}

func TestCaptureForbiddenOutsideTree(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.Capture(context.Background(), fx.policy, cashier, CaptureInput{
		EmployeeID: 20, KpiID: 5, Period: period, Value: strPtr("85"),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCommentOnlyCapturePreservesValueAndGrade(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	if _, err := fx.svc.Capture(ctx, fx.policy, cashier, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Value: strPtr("85"),
	}); err != nil {
		t.Fatalf("seed capture failed: %v", err)
	}

	r, err := fx.svc.Capture(ctx, fx.policy, cashier, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Comment: strPtr("waiting on recount"),
	})
	if err != nil {
		t.Fatalf("comment-only capture failed: %v", err)
	}
	if r.Value == nil || *r.Value != "85" || r.Grade != kpi.GradeGreen {
		t.Fatalf("comment-only capture clobbered value/grade: %+v", r)
	}
	if r.Comment != "waiting on recount" {
		t.Fatalf("comment not stored: %+v", r)
	}
}

func TestCaptureWithoutValueOrCommentRejected(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.Capture(context.Background(), fx.policy, cashier, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestApproveByDirectBoss(t *testing.T) {
	fx := newFixture()
	r, err := fx.svc.Approve(context.Background(), fx.policy, manager, 30, 5, period)
	if err != nil {
		t.Fatalf("direct boss approve failed: %v", err)
	}
	if r.State() != StateApproved || r.ApprovedBy == nil || *r.ApprovedBy != 20 {
		t.Fatalf("unexpected approval state: %+v", r)
	}
}

func TestApproveByGrandBossForbidden(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.Approve(context.Background(), fx.policy, director, 30, 5, period)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for two-levels-up approver, got %v", err)
	}
}

func TestSelfApproval(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	// Director's position is a root: self-approval allowed.
	if _, err := fx.svc.Approve(ctx, fx.policy, director, 10, 5, period); err != nil {
		t.Fatalf("root self-approval failed: %v", err)
	}

	// Cashier has a direct boss: self-approval forbidden.
	_, err := fx.svc.Approve(ctx, fx.policy, cashier, 30, 5, period)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for self-approval with a boss, got %v", err)
	}
}

func TestApproveEmptyResultCreatesRecord(t *testing.T) {
	fx := newFixture()
	r, err := fx.svc.Approve(context.Background(), fx.policy, manager, 30, 5, period)
	if err != nil {
		t.Fatalf("approve of uncaptured result failed: %v", err)
	}
	if r.Value != nil || r.Grade != kpi.GradeNone {
		t.Fatalf("expected empty approved record, got %+v", r)
	}
	if !r.Approved {
		t.Fatal("record not approved")
	}
}

func TestCaptureBlockedByLock(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	if _, err := fx.svc.Approve(ctx, fx.policy, manager, 30, 5, period); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	_, err := fx.svc.Capture(ctx, fx.policy, cashier, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Value: strPtr("90"),
	})
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked for capture on approved result, got %v", err)
	}
}

func TestLockOverrides(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	if _, err := fx.svc.Approve(ctx, fx.policy, manager, 30, 5, period); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// The approver may keep editing their own lock.
	if _, err := fx.svc.Capture(ctx, fx.policy, manager, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Value: strPtr("60"),
	}); err != nil {
		t.Fatalf("approver override failed: %v", err)
	}

	// A manager higher in the approver's chain may override too.
	if _, err := fx.svc.Capture(ctx, fx.policy, director, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Value: strPtr("70"),
	}); err != nil {
		t.Fatalf("superior-chain override failed: %v", err)
	}

	// Elevated roles always bypass the lock.
	if _, err := fx.svc.Capture(ctx, fx.policy, admin, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Value: strPtr("75"),
	}); err != nil {
		t.Fatalf("elevated override failed: %v", err)
	}
}

func TestSendToReviewClearsApproval(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	if _, err := fx.svc.Approve(ctx, fx.policy, manager, 30, 5, period); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	r, err := fx.svc.SendToReview(ctx, fx.policy, manager, 30, 5, period, "value looks stale")
	if err != nil {
		t.Fatalf("send to review failed: %v", err)
	}
	if r.State() != StateInReview {
		t.Fatalf("expected IN_REVIEW, got %s", r.State())
	}
	if r.Approved || r.ApprovedBy != nil || r.ApprovedAt != nil {
		t.Fatalf("approval fields not cleared: %+v", r)
	}
	if r.ReviewReason == nil || *r.ReviewReason != "value looks stale" {
		t.Fatalf("review reason missing: %+v", r)
	}
}

func TestReapproveAfterReviewSetsFreshApprover(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	if _, err := fx.svc.Approve(ctx, fx.policy, manager, 30, 5, period); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	if _, err := fx.svc.SendToReview(ctx, fx.policy, admin, 30, 5, period, "recheck"); err != nil {
		t.Fatalf("send to review failed: %v", err)
	}

	r, err := fx.svc.Approve(ctx, fx.policy, admin, 30, 5, period)
	if err != nil {
		t.Fatalf("second approve failed: %v", err)
	}
	if r.State() != StateApproved {
		t.Fatalf("expected APPROVED, got %s", r.State())
	}
	if r.ReviewRequestedAt != nil || r.ReviewReason != nil {
		t.Fatalf("review fields not cleared on re-approval: %+v", r)
	}
}

func TestSendToReviewSelfForbiddenUnlessElevated(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.SendToReview(ctx, fx.policy, cashier, 30, 5, period, "oops")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for self review, got %v", err)
	}

	elevatedSelf := access.Requester{EmployeeID: 30, Role: auth.RoleManager, PositionID: 3}
	if _, err := fx.svc.SendToReview(ctx, fx.policy, elevatedSelf, 30, 5, period, "redo"); err != nil {
		t.Fatalf("elevated self review should pass, got %v", err)
	}
}

func TestSendToReviewOutsideChainForbidden(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.SendToReview(context.Background(), fx.policy, cashier, 20, 5, period, "no")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestReviewReasonTruncated(t *testing.T) {
	fx := newFixture()
	long := strings.Repeat("x", maxReviewReasonLen+50)
	r, err := fx.svc.SendToReview(context.Background(), fx.policy, manager, 30, 5, period, long)
	if err != nil {
		t.Fatalf("send to review failed: %v", err)
	}
	if r.ReviewReason == nil || len(*r.ReviewReason) != maxReviewReasonLen {
		t.Fatalf("reason not truncated to %d", maxReviewReasonLen)
	}
}

func TestResultsForEmployeeAccessChecked(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	if _, err := fx.svc.Capture(ctx, fx.policy, cashier, CaptureInput{
		EmployeeID: 30, KpiID: 5, Period: period, Value: strPtr("55"),
	}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	results, err := fx.svc.ResultsForEmployee(ctx, fx.policy, manager, 30, period)
	if err != nil || len(results) != 1 {
		t.Fatalf("manager list failed: %v (%d rows)", err, len(results))
	}

	if _, err := fx.svc.ResultsForEmployee(ctx, fx.policy, cashier, 20, period); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for upward read, got %v", err)
	}
}

func TestCaptureUnknownKPI(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.Capture(context.Background(), fx.policy, cashier, CaptureInput{
		EmployeeID: 30, KpiID: 99, Period: period, Value: strPtr("1"),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
