package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Evaluator roles that are resolved outside project staffing.
const (
	RoleBOD  = "bod"
	RoleHR   = "hr"
	RolePeer = "peer"
)

// Generator fans out who-evaluates-whom assignments from project staffing
// data. It writes Excluded evaluations: the administrator reviews the roster
// before Generate opens the real ones.
type Generator struct {
	store Store
	log   *zap.Logger

	// BODEvaluatedRole is the project role that additionally receives board
	// evaluations (project managers in the default setup).
	BODEvaluatedRole string
}

func NewGenerator(store Store, log *zap.Logger) *Generator {
	return &Generator{store: store, log: log, BODEvaluatedRole: "project_manager"}
}

// GenerateAssignments builds the evaluator roster for each selected evaluee
// and materializes the result, evaluation and result-detail rows.
//
// Evaluees are processed independently: a failure mid-iteration leaves the
// already-written evaluees in place, and a re-run skips any evaluee that
// already has a result under the administration.
func (g *Generator) GenerateAssignments(ctx context.Context, administrationID string, evalueeIDs []string) ([]Result, error) {
	admin, err := g.store.GetAdministration(ctx, administrationID)
	if err != nil {
		return nil, err
	}
	period := Window{Start: admin.PeriodStart, End: admin.PeriodEnd}

	var out []Result
	for _, evalueeID := range evalueeIDs {
		res, err := g.generateForEvaluee(ctx, admin, period, evalueeID)
		if err != nil {
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				g.log.Info("evaluee already has a result, skipping",
					zap.String("administration_id", administrationID),
					zap.String("evaluee_id", evalueeID))
				continue
			}
			return out, fmt.Errorf("generate assignments for evaluee %s: %w", evalueeID, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (g *Generator) generateForEvaluee(ctx context.Context, admin Administration, period Window, evalueeID string) (Result, error) {
	if _, err := g.store.GetResultByEvaluee(ctx, admin.ID, evalueeID); err == nil {
		return Result{}, &ConflictError{Msg: "evaluation result already exists for evaluee"}
	} else {
		var nf *NotFoundError
		if !errors.As(err, &nf) {
			return Result{}, err
		}
	}

	evaluee, err := g.store.GetUser(ctx, evalueeID)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		ID:               uuid.NewString(),
		AdministrationID: admin.ID,
		EvalueeID:        evalueeID,
		Status:           ResultForReview,
	}
	if err := g.store.CreateResult(ctx, result); err != nil {
		return Result{}, err
	}

	fan := &fanout{
		gen:     g,
		admin:   admin,
		period:  period,
		result:  result,
		details: map[string]struct{}{},
		seen:    map[string]struct{}{},
	}

	memberships, err := g.store.ListMembershipsForUser(ctx, evalueeID, period)
	if err != nil {
		return Result{}, err
	}

	bodEvaluated := false
	for _, membership := range memberships {
		if membership.Role == g.BODEvaluatedRole {
			bodEvaluated = true
		}
		if err := fan.projectEvaluators(ctx, membership); err != nil {
			return Result{}, err
		}
	}

	if bodEvaluated {
		if err := fan.roleEvaluators(ctx, RoleBOD, g.store.ListBODUsers, evalueeID); err != nil {
			return Result{}, err
		}
	}

	// HR evaluates everyone except the HR evaluators themselves, who get a
	// peer/self round from the rest of the staff instead.
	if !evaluee.HR {
		if err := fan.roleEvaluators(ctx, RoleHR, g.store.ListHRUsers, evalueeID); err != nil {
			return Result{}, err
		}
	} else {
		if err := fan.roleEvaluators(ctx, RolePeer, g.store.ListActiveUsers, evalueeID); err != nil {
			return Result{}, err
		}
	}

	return result, nil
}

// fanout accumulates state for one evaluee's roster build.
type fanout struct {
	gen    *Generator
	admin  Administration
	period Window
	result Result

	// details tracks which templates already have a result-detail row; the
	// first project membership producing a template wins, later ones only
	// contribute their evaluation rows.
	details map[string]struct{}
	// seen enforces one active assignment per (evaluator, project, template).
	seen map[string]struct{}
}

func (f *fanout) projectEvaluators(ctx context.Context, membership ProjectMember) error {
	coMembers, err := f.gen.store.ListMembersOnProject(ctx, membership.ProjectID, f.period)
	if err != nil {
		return err
	}
	window := f.period.Clip(Window{Start: membership.StartDate, End: membership.EndDate})

	for _, co := range coMembers {
		if co.UserID == membership.UserID {
			continue
		}
		evaluator, err := f.gen.store.GetUser(ctx, co.UserID)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return err
		}
		if !evaluator.Active {
			continue
		}
		tmpl, err := f.gen.store.GetTemplateByRoles(ctx, membership.Role, co.Role)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return err
		}
		key := co.UserID + "|" + membership.ProjectID + "|" + tmpl.ID
		if _, dup := f.seen[key]; dup {
			continue
		}
		f.seen[key] = struct{}{}

		if err := f.add(ctx, Evaluation{
			ID:                 uuid.NewString(),
			ResultID:           f.result.ID,
			AdministrationID:   f.admin.ID,
			TemplateID:         tmpl.ID,
			EvaluatorID:        co.UserID,
			EvalueeID:          f.result.EvalueeID,
			ProjectID:          membership.ProjectID,
			ProjectMemberID:    membership.ID,
			PeriodStart:        window.Start,
			PeriodEnd:          window.End,
			PercentInvolvement: membership.AllocationRate,
			Status:             EvalExcluded,
			ForEvaluation:      false,
		}, tmpl); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanout) roleEvaluators(ctx context.Context, role string, list func(context.Context) ([]User, error), evalueeID string) error {
	templates, err := f.gen.store.ListTemplatesByEvaluatorRole(ctx, role)
	if err != nil {
		return err
	}
	evaluators, err := list(ctx)
	if err != nil {
		return err
	}
	for _, tmpl := range templates {
		for _, evaluator := range evaluators {
			if evaluator.ID == evalueeID {
				continue
			}
			key := evaluator.ID + "||" + tmpl.ID
			if _, dup := f.seen[key]; dup {
				continue
			}
			f.seen[key] = struct{}{}

			if err := f.add(ctx, Evaluation{
				ID:                 uuid.NewString(),
				ResultID:           f.result.ID,
				AdministrationID:   f.admin.ID,
				TemplateID:         tmpl.ID,
				EvaluatorID:        evaluator.ID,
				EvalueeID:          evalueeID,
				PeriodStart:        f.period.Start,
				PeriodEnd:          f.period.End,
				PercentInvolvement: 100,
				Status:             EvalExcluded,
				ForEvaluation:      false,
			}, tmpl); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fanout) add(ctx context.Context, e Evaluation, tmpl Template) error {
	if err := f.gen.store.CreateEvaluation(ctx, e); err != nil {
		return err
	}
	if _, ok := f.details[tmpl.ID]; ok {
		return nil
	}
	f.details[tmpl.ID] = struct{}{}
	return f.gen.store.CreateResultDetail(ctx, ResultDetail{
		ID:         uuid.NewString(),
		ResultID:   f.result.ID,
		TemplateID: tmpl.ID,
		Weight:     tmpl.Rate,
	})
}
