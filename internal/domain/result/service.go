package result

import (
	"context"
	"errors"
	"strings"
	"time"

	"kpitrack/internal/domain/access"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/kpi"
)

const maxReviewReasonLen = 500

type KPILookup interface {
	Get(ctx context.Context, kpiID int64) (*kpi.KPI, error)
}

type Service struct {
	Store StoreAPI
	Kpis  KPILookup
	Now   func() time.Time
}

func NewService(store StoreAPI, kpis KPILookup) *Service {
	return &Service{Store: store, Kpis: kpis, Now: time.Now}
}

type CaptureInput struct {
	EmployeeID    int64
	KpiID         int64
	Period        Period
	Value         *string
	GradeOverride string
	Comment       *string
}

// Capture records a value (or a comment-only update) for one result.
// The lock check is not performed here against a pre-read: the store
// re-evaluates the approved state inside a single conditional write, so
// an approval landing between this call and the write still locks out
// the capture.
func (s *Service) Capture(ctx context.Context, policy *access.Policy, actor access.Requester, in CaptureInput) (*Result, error) {
	if in.EmployeeID <= 0 || in.KpiID <= 0 || !in.Period.Valid() {
		return nil, ErrInvalidInput
	}
	if in.Value == nil && in.Comment == nil {
		return nil, ErrInvalidInput
	}
	if in.GradeOverride != "" && !kpi.ValidGrade(in.GradeOverride) {
		return nil, ErrInvalidInput
	}

	if in.EmployeeID != actor.EmployeeID && !auth.IsElevated(actor.Role) {
		ok, err := policy.CanAccessEmployeeTree(ctx, actor, in.EmployeeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden
		}
	}

	unlock, err := s.unlockSet(ctx, policy, actor)
	if err != nil {
		return nil, err
	}
	key := Key{EmployeeID: in.EmployeeID, KpiID: in.KpiID, Period: in.Period}

	// Comment-only updates are a narrower write: they must never
	// overwrite an existing value or grade.
	if in.Value == nil {
		return s.Store.CaptureComment(ctx, key, *in.Comment, unlock)
	}

	definition, err := s.Kpis.Get(ctx, in.KpiID)
	if err != nil {
		if errors.Is(err, kpi.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	grade, score, reason := in.GradeOverride, kpi.ScoreForGrade(in.GradeOverride), ""
	if in.GradeOverride == "" {
		classification := kpi.Classify(definition, *in.Value)
		grade, score, reason = classification.Grade, classification.Score, classification.Reason
	}

	return s.Store.CaptureValue(ctx, key, *in.Value, grade, score, reason, in.Comment, unlock)
}

// Approve locks the result. Allowed for elevated roles, the target's
// direct boss, or the target themselves when their position has no
// superior. Approval of a result that was never captured is permitted
// and creates the record.
func (s *Service) Approve(ctx context.Context, policy *access.Policy, actor access.Requester, employeeID, kpiID int64, period Period) (*Result, error) {
	if employeeID <= 0 || kpiID <= 0 || !period.Valid() {
		return nil, ErrInvalidInput
	}
	if actor.EmployeeID <= 0 && !auth.IsElevated(actor.Role) {
		return nil, ErrForbidden
	}

	allowed := auth.IsElevated(actor.Role)
	if !allowed {
		var err error
		if actor.EmployeeID == employeeID {
			allowed, err = policy.HasNoDirectBoss(ctx, employeeID)
		} else {
			allowed, err = policy.IsDirectBoss(ctx, actor, employeeID)
		}
		if err != nil {
			return nil, err
		}
	}
	if !allowed {
		return nil, ErrForbidden
	}

	return s.Store.Approve(ctx, Key{EmployeeID: employeeID, KpiID: kpiID, Period: period}, actor.EmployeeID, s.Now())
}

// SendToReview reopens an approved or captured result. Anyone in the
// target's superior chain may send it back; sending your own result to
// review is forbidden unless the actor holds an elevated role.
func (s *Service) SendToReview(ctx context.Context, policy *access.Policy, actor access.Requester, employeeID, kpiID int64, period Period, reason string) (*Result, error) {
	if employeeID <= 0 || kpiID <= 0 || !period.Valid() {
		return nil, ErrInvalidInput
	}

	if !auth.IsElevated(actor.Role) {
		if actor.EmployeeID == employeeID {
			return nil, ErrForbidden
		}
		ok, err := policy.CanAccessEmployeeTree(ctx, actor, employeeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden
		}
	}

	return s.Store.SendToReview(ctx, Key{EmployeeID: employeeID, KpiID: kpiID, Period: period}, actor.EmployeeID, truncateReason(reason), s.Now())
}

// ResultsForEmployee lists one employee's results for a period, gated
// by the same tree access as captures.
func (s *Service) ResultsForEmployee(ctx context.Context, policy *access.Policy, actor access.Requester, employeeID int64, period Period) ([]Result, error) {
	if employeeID <= 0 || !period.Valid() {
		return nil, ErrInvalidInput
	}
	ok, err := policy.CanAccessEmployeeTree(ctx, actor, employeeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return s.Store.ListForEmployee(ctx, employeeID, period)
}

// unlockSet lists the approvers whose lock this actor may override:
// everyone for elevated roles, otherwise the actor plus every employee
// below the actor's position (a higher-level manager may override a
// subordinate manager's lock).
func (s *Service) unlockSet(ctx context.Context, policy *access.Policy, actor access.Requester) (UnlockSet, error) {
	if auth.IsElevated(actor.Role) {
		return UnlockSet{All: true}, nil
	}
	ids := []int64{actor.EmployeeID}
	if actor.PositionID != 0 {
		subordinates, err := s.Store.EmployeesInPositions(ctx, policy.Snap.SubordinatePositionIDs(actor.PositionID))
		if err != nil {
			return UnlockSet{}, err
		}
		ids = append(ids, subordinates...)
	}
	return UnlockSet{ApproverIDs: ids}, nil
}

func truncateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	runes := []rune(reason)
	if len(runes) > maxReviewReasonLen {
		return string(runes[:maxReviewReasonLen])
	}
	return reason
}
