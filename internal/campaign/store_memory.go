package campaign

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu sync.RWMutex

	administrations map[string]Administration
	results         map[string]Result
	details         map[string]ResultDetail
	evaluations     map[string]Evaluation
	ratings         map[string]Rating

	templates map[string]Template
	contents  map[string]TemplateContent
	options   map[string]AnswerOption
	bands     map[string]ScoreRating
	users     map[string]User
	externals map[string]ExternalEvaluator
	projects  map[string]Project
	members   map[string]ProjectMember
}

// NewInMemoryStore backs the engine with plain maps. Used by tests and the
// sqlite-free dev mode.
func NewInMemoryStore() Store {
	return &memoryStore{
		administrations: map[string]Administration{},
		results:         map[string]Result{},
		details:         map[string]ResultDetail{},
		evaluations:     map[string]Evaluation{},
		ratings:         map[string]Rating{},
		templates:       map[string]Template{},
		contents:        map[string]TemplateContent{},
		options:         map[string]AnswerOption{},
		bands:           map[string]ScoreRating{},
		users:           map[string]User{},
		externals:       map[string]ExternalEvaluator{},
		projects:        map[string]Project{},
		members:         map[string]ProjectMember{},
	}
}

func (m *memoryStore) CreateAdministration(_ context.Context, a Administration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.administrations[a.ID] = a
	return nil
}

func (m *memoryStore) GetAdministration(_ context.Context, id string) (Administration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.administrations[id]
	if !ok {
		return Administration{}, &NotFoundError{Entity: "evaluation administration", ID: id}
	}
	return a, nil
}

func (m *memoryStore) ListAdministrations(_ context.Context, statuses ...AdministrationStatus) ([]Administration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Administration
	for _, a := range m.administrations {
		if len(statuses) == 0 || containsAdminStatus(statuses, a.Status) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *memoryStore) UpdateAdministration(_ context.Context, a Administration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.administrations[a.ID]; !ok {
		return &NotFoundError{Entity: "evaluation administration", ID: a.ID}
	}
	m.administrations[a.ID] = a
	return nil
}

func (m *memoryStore) DeleteAdministration(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.administrations[id]; !ok {
		return &NotFoundError{Entity: "evaluation administration", ID: id}
	}
	// children before parents
	for rid, r := range m.ratings {
		if e, ok := m.evaluations[r.EvaluationID]; ok && e.AdministrationID == id {
			delete(m.ratings, rid)
		}
	}
	for eid, e := range m.evaluations {
		if e.AdministrationID == id {
			delete(m.evaluations, eid)
		}
	}
	for did, d := range m.details {
		if r, ok := m.results[d.ResultID]; ok && r.AdministrationID == id {
			delete(m.details, did)
		}
	}
	for rid, r := range m.results {
		if r.AdministrationID == id {
			delete(m.results, rid)
		}
	}
	delete(m.administrations, id)
	return nil
}

func (m *memoryStore) CreateResult(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ex := range m.results {
		if ex.AdministrationID == r.AdministrationID && ex.EvalueeID == r.EvalueeID {
			return &ConflictError{Msg: "evaluation result already exists for evaluee"}
		}
	}
	m.results[r.ID] = r
	return nil
}

func (m *memoryStore) GetResult(_ context.Context, id string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[id]
	if !ok {
		return Result{}, &NotFoundError{Entity: "evaluation result", ID: id}
	}
	return r, nil
}

func (m *memoryStore) GetResultByEvaluee(_ context.Context, administrationID, evalueeID string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results {
		if r.AdministrationID == administrationID && r.EvalueeID == evalueeID {
			return r, nil
		}
	}
	return Result{}, &NotFoundError{Entity: "evaluation result"}
}

func (m *memoryStore) ListResultsByAdministration(_ context.Context, administrationID string) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Result
	for _, r := range m.results {
		if r.AdministrationID == administrationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateResult(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[r.ID]; !ok {
		return &NotFoundError{Entity: "evaluation result", ID: r.ID}
	}
	m.results[r.ID] = r
	return nil
}

func (m *memoryStore) DeleteResult(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[id]; !ok {
		return &NotFoundError{Entity: "evaluation result", ID: id}
	}
	for rid, r := range m.ratings {
		if e, ok := m.evaluations[r.EvaluationID]; ok && e.ResultID == id {
			delete(m.ratings, rid)
		}
	}
	for eid, e := range m.evaluations {
		if e.ResultID == id {
			delete(m.evaluations, eid)
		}
	}
	for did, d := range m.details {
		if d.ResultID == id {
			delete(m.details, did)
		}
	}
	delete(m.results, id)
	return nil
}

func (m *memoryStore) CreateResultDetail(_ context.Context, d ResultDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details[d.ID] = d
	return nil
}

func (m *memoryStore) ListDetailsByResult(_ context.Context, resultID string) ([]ResultDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ResultDetail
	for _, d := range m.details {
		if d.ResultID == resultID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateResultDetail(_ context.Context, d ResultDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.details[d.ID]; !ok {
		return &NotFoundError{Entity: "evaluation result detail", ID: d.ID}
	}
	m.details[d.ID] = d
	return nil
}

func (m *memoryStore) CreateEvaluation(_ context.Context, e Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations[e.ID] = e
	return nil
}

func (m *memoryStore) GetEvaluation(_ context.Context, id string) (Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.evaluations[id]
	if !ok {
		return Evaluation{}, &NotFoundError{Entity: "evaluation", ID: id}
	}
	return e, nil
}

func (m *memoryStore) ListEvaluations(_ context.Context, f EvaluationFilter) ([]Evaluation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Evaluation
	for _, e := range m.evaluations {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateEvaluation(_ context.Context, e Evaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.evaluations[e.ID]; !ok {
		return &NotFoundError{Entity: "evaluation", ID: e.ID}
	}
	m.evaluations[e.ID] = e
	return nil
}

func (m *memoryStore) DeleteEvaluation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.evaluations[id]; !ok {
		return &NotFoundError{Entity: "evaluation", ID: id}
	}
	for rid, r := range m.ratings {
		if r.EvaluationID == id {
			delete(m.ratings, rid)
		}
	}
	delete(m.evaluations, id)
	return nil
}

func (m *memoryStore) CreateRating(_ context.Context, r Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[r.ID] = r
	return nil
}

func (m *memoryStore) GetRating(_ context.Context, id string) (Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ratings[id]
	if !ok {
		return Rating{}, &NotFoundError{Entity: "evaluation rating", ID: id}
	}
	return r, nil
}

func (m *memoryStore) ListRatingsByEvaluation(_ context.Context, evaluationID string) ([]Rating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Rating
	for _, r := range m.ratings {
		if r.EvaluationID == evaluationID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) UpdateRating(_ context.Context, r Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ratings[r.ID]; !ok {
		return &NotFoundError{Entity: "evaluation rating", ID: r.ID}
	}
	m.ratings[r.ID] = r
	return nil
}

func (m *memoryStore) DeleteRatingsByEvaluation(_ context.Context, evaluationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.ratings {
		if r.EvaluationID == evaluationID {
			delete(m.ratings, id)
		}
	}
	return nil
}

func (m *memoryStore) PutTemplate(_ context.Context, t Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *memoryStore) GetTemplate(_ context.Context, id string) (Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return Template{}, &NotFoundError{Entity: "evaluation template", ID: id}
	}
	return t, nil
}

func (m *memoryStore) GetTemplateByRoles(_ context.Context, evalueeRole, evaluatorRole string) (Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.templates {
		if t.Active && t.EvalueeRole == evalueeRole && t.EvaluatorRole == evaluatorRole {
			return t, nil
		}
	}
	return Template{}, &NotFoundError{Entity: "evaluation template"}
}

func (m *memoryStore) ListTemplatesByEvaluatorRole(_ context.Context, evaluatorRole string) ([]Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Template
	for _, t := range m.templates {
		if t.Active && t.EvaluatorRole == evaluatorRole {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) PutTemplateContent(_ context.Context, c TemplateContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents[c.ID] = c
	return nil
}

func (m *memoryStore) ListActiveContentsByTemplate(_ context.Context, templateID string) ([]TemplateContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TemplateContent
	for _, c := range m.contents {
		if c.TemplateID == templateID && c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *memoryStore) PutAnswerOption(_ context.Context, o AnswerOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options[o.ID] = o
	return nil
}

func (m *memoryStore) GetAnswerOption(_ context.Context, id string) (AnswerOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.options[id]
	if !ok {
		return AnswerOption{}, &NotFoundError{Entity: "answer option", ID: id}
	}
	return o, nil
}

func (m *memoryStore) ListAnswerOptionsByScale(_ context.Context, scaleID string) ([]AnswerOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AnswerOption
	for _, o := range m.options {
		if o.ScaleID == scaleID && o.Active {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (m *memoryStore) PutScoreRating(_ context.Context, s ScoreRating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bands[s.ID] = s
	return nil
}

func (m *memoryStore) ScoreRatingFor(_ context.Context, score float64) (ScoreRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bands {
		if score >= b.MinScore && score <= b.MaxScore {
			return b, nil
		}
	}
	return ScoreRating{}, &NotFoundError{Entity: "score rating"}
}

func (m *memoryStore) PutUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *memoryStore) GetUser(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, &NotFoundError{Entity: "user", ID: id}
	}
	return u, nil
}

func (m *memoryStore) ListActiveUsers(_ context.Context) ([]User, error) {
	return m.listUsers(func(u User) bool { return u.Active })
}

func (m *memoryStore) ListHRUsers(_ context.Context) ([]User, error) {
	return m.listUsers(func(u User) bool { return u.Active && u.HR })
}

func (m *memoryStore) ListBODUsers(_ context.Context) ([]User, error) {
	return m.listUsers(func(u User) bool { return u.Active && u.BOD })
}

func (m *memoryStore) listUsers(keep func(User) bool) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []User
	for _, u := range m.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) PutExternalEvaluator(_ context.Context, e ExternalEvaluator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.externals[e.ID] = e
	return nil
}

func (m *memoryStore) GetExternalEvaluator(_ context.Context, id string) (ExternalEvaluator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.externals[id]
	if !ok {
		return ExternalEvaluator{}, &NotFoundError{Entity: "external evaluator", ID: id}
	}
	return e, nil
}

func (m *memoryStore) PutProject(_ context.Context, p Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *memoryStore) GetProject(_ context.Context, id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return Project{}, &NotFoundError{Entity: "project", ID: id}
	}
	return p, nil
}

func (m *memoryStore) PutProjectMember(_ context.Context, pm ProjectMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[pm.ID] = pm
	return nil
}

func (m *memoryStore) ListMembershipsForUser(_ context.Context, userID string, w Window) ([]ProjectMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ProjectMember
	for _, pm := range m.members {
		if pm.UserID == userID && w.Overlaps(Window{Start: pm.StartDate, End: pm.EndDate}) {
			out = append(out, pm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) ListMembersOnProject(_ context.Context, projectID string, w Window) ([]ProjectMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ProjectMember
	for _, pm := range m.members {
		if pm.ProjectID == projectID && w.Overlaps(Window{Start: pm.StartDate, End: pm.EndDate}) {
			out = append(out, pm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsAdminStatus(ss []AdministrationStatus, s AdministrationStatus) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
