package campaign

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLStore implements Store on database/sql. Both supported drivers (pgx and
// modernc sqlite) accept $n placeholders.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func dateOf(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- administrations ---

func (s *SQLStore) CreateAdministration(ctx context.Context, a Administration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluation_administrations
		 (id, name, kind, period_start, period_end, schedule_start, schedule_end,
		  remarks, email_subject, email_content, status, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.Name, a.Kind, unixOrZero(a.PeriodStart), unixOrZero(a.PeriodEnd),
		unixOrZero(a.ScheduleStart), unixOrZero(a.ScheduleEnd),
		a.Remarks, a.EmailSubject, a.EmailContent, a.Status, a.CreatedAt, a.UpdatedAt)
	return err
}

const adminCols = `id, name, kind, period_start, period_end, schedule_start, schedule_end,
	remarks, email_subject, email_content, status, created_at, updated_at`

func scanAdministration(row interface{ Scan(...any) error }) (Administration, error) {
	var a Administration
	var ps, pe, ss, se int64
	if err := row.Scan(&a.ID, &a.Name, &a.Kind, &ps, &pe, &ss, &se,
		&a.Remarks, &a.EmailSubject, &a.EmailContent, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Administration{}, err
	}
	a.PeriodStart, a.PeriodEnd = dateOf(ps), dateOf(pe)
	a.ScheduleStart, a.ScheduleEnd = dateOf(ss), dateOf(se)
	return a, nil
}

func (s *SQLStore) GetAdministration(ctx context.Context, id string) (Administration, error) {
	a, err := scanAdministration(s.db.QueryRowContext(ctx,
		`SELECT `+adminCols+` FROM evaluation_administrations WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Administration{}, &NotFoundError{Entity: "evaluation administration", ID: id}
	}
	return a, err
}

func (s *SQLStore) ListAdministrations(ctx context.Context, statuses ...AdministrationStatus) ([]Administration, error) {
	q := `SELECT ` + adminCols + ` FROM evaluation_administrations`
	var args []any
	if len(statuses) > 0 {
		ph := make([]string, len(statuses))
		for i, st := range statuses {
			ph[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, st)
		}
		q += ` WHERE status IN (` + strings.Join(ph, ",") + `)`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Administration
	for rows.Next() {
		a, err := scanAdministration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateAdministration(ctx context.Context, a Administration) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evaluation_administrations SET
		 name=$1, kind=$2, period_start=$3, period_end=$4, schedule_start=$5, schedule_end=$6,
		 remarks=$7, email_subject=$8, email_content=$9, status=$10, updated_at=$11
		 WHERE id=$12`,
		a.Name, a.Kind, unixOrZero(a.PeriodStart), unixOrZero(a.PeriodEnd),
		unixOrZero(a.ScheduleStart), unixOrZero(a.ScheduleEnd),
		a.Remarks, a.EmailSubject, a.EmailContent, a.Status, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "evaluation administration", a.ID)
}

func (s *SQLStore) DeleteAdministration(ctx context.Context, id string) error {
	// children before parents
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM evaluation_ratings WHERE evaluation_id IN
		 (SELECT id FROM evaluations WHERE administration_id=$1)`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE administration_id=$1`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM evaluation_result_details WHERE result_id IN
		 (SELECT id FROM evaluation_results WHERE administration_id=$1)`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evaluation_results WHERE administration_id=$1`, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluation_administrations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "evaluation administration", id)
}

// --- results ---

func (s *SQLStore) CreateResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluation_results
		 (id, administration_id, evaluee_id, status, score, zscore, banding, score_rating_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.AdministrationID, r.EvalueeID, r.Status, r.Score, r.ZScore, r.Banding, r.ScoreRatingID)
	if err != nil && isUniqueViolation(err) {
		return &ConflictError{Msg: "evaluation result already exists for evaluee"}
	}
	return err
}

const resultCols = `id, administration_id, evaluee_id, status, score, zscore, banding, score_rating_id`

func scanResult(row interface{ Scan(...any) error }) (Result, error) {
	var r Result
	err := row.Scan(&r.ID, &r.AdministrationID, &r.EvalueeID, &r.Status,
		&r.Score, &r.ZScore, &r.Banding, &r.ScoreRatingID)
	return r, err
}

func (s *SQLStore) GetResult(ctx context.Context, id string) (Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultCols+` FROM evaluation_results WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, &NotFoundError{Entity: "evaluation result", ID: id}
	}
	return r, err
}

func (s *SQLStore) GetResultByEvaluee(ctx context.Context, administrationID, evalueeID string) (Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultCols+` FROM evaluation_results WHERE administration_id=$1 AND evaluee_id=$2`,
		administrationID, evalueeID))
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, &NotFoundError{Entity: "evaluation result"}
	}
	return r, err
}

func (s *SQLStore) ListResultsByAdministration(ctx context.Context, administrationID string) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultCols+` FROM evaluation_results WHERE administration_id=$1 ORDER BY id`,
		administrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateResult(ctx context.Context, r Result) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evaluation_results SET status=$1, score=$2, zscore=$3, banding=$4, score_rating_id=$5
		 WHERE id=$6`,
		r.Status, r.Score, r.ZScore, r.Banding, r.ScoreRatingID, r.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "evaluation result", r.ID)
}

func (s *SQLStore) DeleteResult(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM evaluation_ratings WHERE evaluation_id IN
		 (SELECT id FROM evaluations WHERE result_id=$1)`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE result_id=$1`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evaluation_result_details WHERE result_id=$1`, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluation_results WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "evaluation result", id)
}

// --- result details ---

func (s *SQLStore) CreateResultDetail(ctx context.Context, d ResultDetail) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluation_result_details (id, result_id, template_id, weight, score, weighted_score)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.ResultID, d.TemplateID, d.Weight, d.Score, d.WeightedScore)
	return err
}

func (s *SQLStore) ListDetailsByResult(ctx context.Context, resultID string) ([]ResultDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, result_id, template_id, weight, score, weighted_score
		 FROM evaluation_result_details WHERE result_id=$1 ORDER BY id`, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ResultDetail
	for rows.Next() {
		var d ResultDetail
		if err := rows.Scan(&d.ID, &d.ResultID, &d.TemplateID, &d.Weight, &d.Score, &d.WeightedScore); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateResultDetail(ctx context.Context, d ResultDetail) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evaluation_result_details SET weight=$1, score=$2, weighted_score=$3 WHERE id=$4`,
		d.Weight, d.Score, d.WeightedScore, d.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "evaluation result detail", d.ID)
}

// --- evaluations ---

func (s *SQLStore) CreateEvaluation(ctx context.Context, e Evaluation) error {
	var submitted any
	if e.SubmittedAt != nil {
		submitted = e.SubmittedAt.Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations
		 (id, result_id, administration_id, template_id, evaluator_id, external_evaluator_id,
		  evaluee_id, project_id, project_member_id, period_start, period_end,
		  percent_involvement, status, for_evaluation, score, weight, weighted_score,
		  comments, submission_method, submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		e.ID, e.ResultID, e.AdministrationID, e.TemplateID, e.EvaluatorID, e.ExternalEvaluatorID,
		e.EvalueeID, e.ProjectID, e.ProjectMemberID, unixOrZero(e.PeriodStart), unixOrZero(e.PeriodEnd),
		e.PercentInvolvement, e.Status, boolInt(e.ForEvaluation), e.Score, e.Weight, e.WeightedScore,
		e.Comments, e.SubmissionMethod, submitted)
	return err
}

const evalCols = `id, result_id, administration_id, template_id, evaluator_id, external_evaluator_id,
	evaluee_id, project_id, project_member_id, period_start, period_end,
	percent_involvement, status, for_evaluation, score, weight, weighted_score,
	comments, submission_method, submitted_at`

func scanEvaluation(row interface{ Scan(...any) error }) (Evaluation, error) {
	var e Evaluation
	var ps, pe int64
	var forEval int
	var submitted sql.NullInt64
	if err := row.Scan(&e.ID, &e.ResultID, &e.AdministrationID, &e.TemplateID,
		&e.EvaluatorID, &e.ExternalEvaluatorID, &e.EvalueeID, &e.ProjectID, &e.ProjectMemberID,
		&ps, &pe, &e.PercentInvolvement, &e.Status, &forEval,
		&e.Score, &e.Weight, &e.WeightedScore,
		&e.Comments, &e.SubmissionMethod, &submitted); err != nil {
		return Evaluation{}, err
	}
	e.PeriodStart, e.PeriodEnd = dateOf(ps), dateOf(pe)
	e.ForEvaluation = forEval != 0
	if submitted.Valid {
		t := dateOf(submitted.Int64)
		e.SubmittedAt = &t
	}
	return e, nil
}

func (s *SQLStore) GetEvaluation(ctx context.Context, id string) (Evaluation, error) {
	e, err := scanEvaluation(s.db.QueryRowContext(ctx,
		`SELECT `+evalCols+` FROM evaluations WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Evaluation{}, &NotFoundError{Entity: "evaluation", ID: id}
	}
	return e, err
}

func (s *SQLStore) ListEvaluations(ctx context.Context, f EvaluationFilter) ([]Evaluation, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.AdministrationID != "" {
		add("administration_id=$%d", f.AdministrationID)
	}
	if f.ResultID != "" {
		add("result_id=$%d", f.ResultID)
	}
	if f.EvaluatorID != "" {
		add("evaluator_id=$%d", f.EvaluatorID)
	}
	if f.ExternalEvaluatorID != "" {
		add("external_evaluator_id=$%d", f.ExternalEvaluatorID)
	}
	if f.TemplateID != "" {
		add("template_id=$%d", f.TemplateID)
	}
	if f.ForEvaluation != nil {
		add("for_evaluation=$%d", boolInt(*f.ForEvaluation))
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			args = append(args, st)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		conds = append(conds, `status IN (`+strings.Join(ph, ",")+`)`)
	}
	q := `SELECT ` + evalCols + ` FROM evaluations`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateEvaluation(ctx context.Context, e Evaluation) error {
	var submitted any
	if e.SubmittedAt != nil {
		submitted = e.SubmittedAt.Unix()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE evaluations SET
		 status=$1, for_evaluation=$2, score=$3, weight=$4, weighted_score=$5,
		 comments=$6, submission_method=$7, submitted_at=$8,
		 period_start=$9, period_end=$10, percent_involvement=$11
		 WHERE id=$12`,
		e.Status, boolInt(e.ForEvaluation), e.Score, e.Weight, e.WeightedScore,
		e.Comments, e.SubmissionMethod, submitted,
		unixOrZero(e.PeriodStart), unixOrZero(e.PeriodEnd), e.PercentInvolvement, e.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "evaluation", e.ID)
}

func (s *SQLStore) DeleteEvaluation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM evaluation_ratings WHERE evaluation_id=$1`, id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "evaluation", id)
}

// --- ratings ---

func (s *SQLStore) CreateRating(ctx context.Context, r Rating) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluation_ratings (id, evaluation_id, content_id, answer_option_id, rate, percentage, score)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		r.ID, r.EvaluationID, r.ContentID, r.AnswerOptionID, r.Rate, r.Percentage, r.Score)
	return err
}

func (s *SQLStore) GetRating(ctx context.Context, id string) (Rating, error) {
	var r Rating
	err := s.db.QueryRowContext(ctx,
		`SELECT id, evaluation_id, content_id, answer_option_id, rate, percentage, score
		 FROM evaluation_ratings WHERE id=$1`, id).
		Scan(&r.ID, &r.EvaluationID, &r.ContentID, &r.AnswerOptionID, &r.Rate, &r.Percentage, &r.Score)
	if errors.Is(err, sql.ErrNoRows) {
		return Rating{}, &NotFoundError{Entity: "evaluation rating", ID: id}
	}
	return r, err
}

func (s *SQLStore) ListRatingsByEvaluation(ctx context.Context, evaluationID string) ([]Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, evaluation_id, content_id, answer_option_id, rate, percentage, score
		 FROM evaluation_ratings WHERE evaluation_id=$1 ORDER BY id`, evaluationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.ID, &r.EvaluationID, &r.ContentID, &r.AnswerOptionID, &r.Rate, &r.Percentage, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateRating(ctx context.Context, r Rating) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evaluation_ratings SET answer_option_id=$1, rate=$2, percentage=$3, score=$4 WHERE id=$5`,
		r.AnswerOptionID, r.Rate, r.Percentage, r.Score, r.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "evaluation rating", r.ID)
}

func (s *SQLStore) DeleteRatingsByEvaluation(ctx context.Context, evaluationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM evaluation_ratings WHERE evaluation_id=$1`, evaluationID)
	return err
}

// --- templates and answer scales ---

func (s *SQLStore) PutTemplate(ctx context.Context, t Template) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluation_templates (id, name, display_name, evaluee_role, evaluator_role, rate, answer_scale_id, is_active)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, display_name=EXCLUDED.display_name,
		   evaluee_role=EXCLUDED.evaluee_role, evaluator_role=EXCLUDED.evaluator_role,
		   rate=EXCLUDED.rate, answer_scale_id=EXCLUDED.answer_scale_id, is_active=EXCLUDED.is_active`,
		t.ID, t.Name, t.DisplayName, t.EvalueeRole, t.EvaluatorRole, t.Rate, t.AnswerScaleID, boolInt(t.Active))
	return err
}

const templateCols = `id, name, display_name, evaluee_role, evaluator_role, rate, answer_scale_id, is_active`

func scanTemplate(row interface{ Scan(...any) error }) (Template, error) {
	var t Template
	var active int
	if err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &t.EvalueeRole, &t.EvaluatorRole,
		&t.Rate, &t.AnswerScaleID, &active); err != nil {
		return Template{}, err
	}
	t.Active = active != 0
	return t, nil
}

func (s *SQLStore) GetTemplate(ctx context.Context, id string) (Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateCols+` FROM evaluation_templates WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, &NotFoundError{Entity: "evaluation template", ID: id}
	}
	return t, err
}

func (s *SQLStore) GetTemplateByRoles(ctx context.Context, evalueeRole, evaluatorRole string) (Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateCols+` FROM evaluation_templates
		 WHERE evaluee_role=$1 AND evaluator_role=$2 AND is_active=1 LIMIT 1`,
		evalueeRole, evaluatorRole))
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, &NotFoundError{Entity: "evaluation template"}
	}
	return t, err
}

func (s *SQLStore) ListTemplatesByEvaluatorRole(ctx context.Context, evaluatorRole string) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateCols+` FROM evaluation_templates
		 WHERE evaluator_role=$1 AND is_active=1 ORDER BY id`, evaluatorRole)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutTemplateContent(ctx context.Context, c TemplateContent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluation_template_contents (id, template_id, name, rate, sequence_no, is_active)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET template_id=EXCLUDED.template_id, name=EXCLUDED.name,
		   rate=EXCLUDED.rate, sequence_no=EXCLUDED.sequence_no, is_active=EXCLUDED.is_active`,
		c.ID, c.TemplateID, c.Name, c.Rate, c.Sequence, boolInt(c.Active))
	return err
}

func (s *SQLStore) ListActiveContentsByTemplate(ctx context.Context, templateID string) ([]TemplateContent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template_id, name, rate, sequence_no, is_active
		 FROM evaluation_template_contents WHERE template_id=$1 AND is_active=1 ORDER BY sequence_no`,
		templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TemplateContent
	for rows.Next() {
		var c TemplateContent
		var active int
		if err := rows.Scan(&c.ID, &c.TemplateID, &c.Name, &c.Rate, &c.Sequence, &active); err != nil {
			return nil, err
		}
		c.Active = active != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutAnswerOption(ctx context.Context, o AnswerOption) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO answer_options (id, scale_id, name, rate, sequence_no, is_active)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET scale_id=EXCLUDED.scale_id, name=EXCLUDED.name,
		   rate=EXCLUDED.rate, sequence_no=EXCLUDED.sequence_no, is_active=EXCLUDED.is_active`,
		o.ID, o.ScaleID, o.Name, o.Rate, o.Sequence, boolInt(o.Active))
	return err
}

func (s *SQLStore) GetAnswerOption(ctx context.Context, id string) (AnswerOption, error) {
	var o AnswerOption
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scale_id, name, rate, sequence_no, is_active FROM answer_options WHERE id=$1`, id).
		Scan(&o.ID, &o.ScaleID, &o.Name, &o.Rate, &o.Sequence, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return AnswerOption{}, &NotFoundError{Entity: "answer option", ID: id}
	}
	o.Active = active != 0
	return o, err
}

func (s *SQLStore) ListAnswerOptionsByScale(ctx context.Context, scaleID string) ([]AnswerOption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scale_id, name, rate, sequence_no, is_active
		 FROM answer_options WHERE scale_id=$1 AND is_active=1 ORDER BY sequence_no`, scaleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnswerOption
	for rows.Next() {
		var o AnswerOption
		var active int
		if err := rows.Scan(&o.ID, &o.ScaleID, &o.Name, &o.Rate, &o.Sequence, &active); err != nil {
			return nil, err
		}
		o.Active = active != 0
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- score bands ---

func (s *SQLStore) PutScoreRating(ctx context.Context, b ScoreRating) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO score_ratings (id, name, min_score, max_score)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, min_score=EXCLUDED.min_score, max_score=EXCLUDED.max_score`,
		b.ID, b.Name, b.MinScore, b.MaxScore)
	return err
}

func (s *SQLStore) ScoreRatingFor(ctx context.Context, score float64) (ScoreRating, error) {
	var b ScoreRating
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, min_score, max_score FROM score_ratings
		 WHERE min_score<=$1 AND max_score>=$1 ORDER BY min_score LIMIT 1`, score).
		Scan(&b.ID, &b.Name, &b.MinScore, &b.MaxScore)
	if errors.Is(err, sql.ErrNoRows) {
		return ScoreRating{}, &NotFoundError{Entity: "score rating"}
	}
	return b, err
}

// --- staffing read side ---

func (s *SQLStore) PutUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, email, is_active, is_hr, is_bod)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name,
		   email=EXCLUDED.email, is_active=EXCLUDED.is_active, is_hr=EXCLUDED.is_hr, is_bod=EXCLUDED.is_bod`,
		u.ID, u.FirstName, u.LastName, u.Email, boolInt(u.Active), boolInt(u.HR), boolInt(u.BOD))
	return err
}

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var active, hr, bod int
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &active, &hr, &bod); err != nil {
		return User{}, err
	}
	u.Active, u.HR, u.BOD = active != 0, hr != 0, bod != 0
	return u, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, is_active, is_hr, is_bod FROM users WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, &NotFoundError{Entity: "user", ID: id}
	}
	return u, err
}

func (s *SQLStore) listUsers(ctx context.Context, where string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, email, is_active, is_hr, is_bod FROM users WHERE `+where+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListActiveUsers(ctx context.Context) ([]User, error) {
	return s.listUsers(ctx, `is_active=1`)
}

func (s *SQLStore) ListHRUsers(ctx context.Context) ([]User, error) {
	return s.listUsers(ctx, `is_active=1 AND is_hr=1`)
}

func (s *SQLStore) ListBODUsers(ctx context.Context) ([]User, error) {
	return s.listUsers(ctx, `is_active=1 AND is_bod=1`)
}

func (s *SQLStore) PutExternalEvaluator(ctx context.Context, e ExternalEvaluator) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO external_evaluators (id, first_name, last_name, email, role, access_code_hash)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name,
		   email=EXCLUDED.email, role=EXCLUDED.role, access_code_hash=EXCLUDED.access_code_hash`,
		e.ID, e.FirstName, e.LastName, e.Email, e.Role, e.AccessCodeHash)
	return err
}

func (s *SQLStore) GetExternalEvaluator(ctx context.Context, id string) (ExternalEvaluator, error) {
	var e ExternalEvaluator
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, role, access_code_hash FROM external_evaluators WHERE id=$1`, id).
		Scan(&e.ID, &e.FirstName, &e.LastName, &e.Email, &e.Role, &e.AccessCodeHash)
	if errors.Is(err, sql.ErrNoRows) {
		return ExternalEvaluator{}, &NotFoundError{Entity: "external evaluator", ID: id}
	}
	return e, err
}

func (s *SQLStore) PutProject(ctx context.Context, p Project) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, status) VALUES ($1,$2,$3)
		 ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, status=EXCLUDED.status`,
		p.ID, p.Name, p.Status)
	return err
}

func (s *SQLStore) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, status FROM projects WHERE id=$1`, id).Scan(&p.ID, &p.Name, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, &NotFoundError{Entity: "project", ID: id}
	}
	return p, err
}

func (s *SQLStore) PutProjectMember(ctx context.Context, m ProjectMember) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_members (id, project_id, user_id, project_role, allocation_rate, start_date, end_date)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET project_id=EXCLUDED.project_id, user_id=EXCLUDED.user_id,
		   project_role=EXCLUDED.project_role, allocation_rate=EXCLUDED.allocation_rate,
		   start_date=EXCLUDED.start_date, end_date=EXCLUDED.end_date`,
		m.ID, m.ProjectID, m.UserID, m.Role, m.AllocationRate, unixOrZero(m.StartDate), unixOrZero(m.EndDate))
	return err
}

// overlapCond is the 4-way inclusive window intersection test, collapsed to
// "neither window starts after the other ends".
const overlapCond = `start_date<=$2 AND end_date>=$3`

func (s *SQLStore) ListMembershipsForUser(ctx context.Context, userID string, w Window) ([]ProjectMember, error) {
	return s.listMembers(ctx,
		`SELECT id, project_id, user_id, project_role, allocation_rate, start_date, end_date
		 FROM project_members WHERE user_id=$1 AND `+overlapCond+` ORDER BY id`,
		userID, w.End.Unix(), w.Start.Unix())
}

func (s *SQLStore) ListMembersOnProject(ctx context.Context, projectID string, w Window) ([]ProjectMember, error) {
	return s.listMembers(ctx,
		`SELECT id, project_id, user_id, project_role, allocation_rate, start_date, end_date
		 FROM project_members WHERE project_id=$1 AND `+overlapCond+` ORDER BY id`,
		projectID, w.End.Unix(), w.Start.Unix())
}

func (s *SQLStore) listMembers(ctx context.Context, q string, args ...any) ([]ProjectMember, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProjectMember
	for rows.Next() {
		var m ProjectMember
		var sd, ed int64
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Role, &m.AllocationRate, &sd, &ed); err != nil {
			return nil, err
		}
		m.StartDate, m.EndDate = dateOf(sd), dateOf(ed)
		out = append(out, m)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}
