package questionnaire

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/events"
)

type memRepo struct {
	questions map[uint]*Question
	responses []PatientResponse
	diet      map[uint]*PatientDietQuestion
	users     map[uint]*auth.User
	nextID    uint
	failTx    error
}

func newMemRepo() *memRepo {
	return &memRepo{
		questions: map[uint]*Question{},
		diet:      map[uint]*PatientDietQuestion{},
		users:     map[uint]*auth.User{},
	}
}

func (m *memRepo) id() uint { m.nextID++; return m.nextID }

func (m *memRepo) CreateQuestion(_ context.Context, q *Question) error {
	q.ID = m.id()
	for i := range q.Options {
		q.Options[i].ID = m.id()
		q.Options[i].QuestionID = q.ID
	}
	cp := *q
	m.questions[q.ID] = &cp
	return nil
}

func (m *memRepo) SaveQuestion(_ context.Context, q *Question, replace bool) error {
	old := m.questions[q.ID]
	if replace {
		for i := range q.Options {
			q.Options[i].ID = m.id()
			q.Options[i].QuestionID = q.ID
		}
	} else {
		q.Options = old.Options
	}
	cp := *q
	m.questions[q.ID] = &cp
	return nil
}

func (m *memRepo) DeleteQuestion(_ context.Context, id uint) error {
	if _, ok := m.questions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.questions, id)
	return nil
}

func (m *memRepo) GetQuestion(_ context.Context, id uint) (*Question, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memRepo) ListQuestions(_ context.Context, category Category) ([]Question, error) {
	var out []Question
	for id := uint(1); id <= m.nextID; id++ {
		if q, ok := m.questions[id]; ok && (category == "" || q.Category == category) {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memRepo) QuestionsByIDs(_ context.Context, ids []uint) ([]Question, error) {
	var out []Question
	for _, id := range ids {
		if q, ok := m.questions[id]; ok {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *memRepo) CountQuestions(ctx context.Context, category Category) (int64, error) {
	qs, _ := m.ListQuestions(ctx, category)
	return int64(len(qs)), nil
}

func (m *memRepo) ReplaceResponses(_ context.Context, userID uint, questionIDs []uint, rows []PatientResponse) error {
	drop := map[uint]bool{}
	for _, id := range questionIDs {
		drop[id] = true
	}
	kept := m.responses[:0]
	for _, r := range m.responses {
		if !(r.UserID == userID && drop[r.QuestionID]) {
			kept = append(kept, r)
		}
	}
	for _, r := range rows {
		r.ID = m.id()
		kept = append(kept, r)
	}
	m.responses = kept
	return nil
}

func (m *memRepo) CountAnsweredQuestions(_ context.Context, userID uint, category Category) (int64, error) {
	seen := map[uint]bool{}
	for _, r := range m.responses {
		if q, ok := m.questions[r.QuestionID]; ok && r.UserID == userID && q.Category == category {
			seen[r.QuestionID] = true
		}
	}
	return int64(len(seen)), nil
}

func (m *memRepo) ListResponses(_ context.Context, userID *uint) ([]PatientResponse, error) {
	var out []PatientResponse
	for _, r := range m.responses {
		if userID == nil || r.UserID == *userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) GetDietRecord(_ context.Context, userID uint) (*PatientDietQuestion, error) {
	rec, ok := m.diet[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) UpsertDietRecord(_ context.Context, rec *PatientDietQuestion) error {
	cp := *rec
	m.diet[rec.UserID] = &cp
	return nil
}

func (m *memRepo) DueDietRecords(_ context.Context, dueBefore time.Time) ([]PatientDietQuestion, error) {
	var out []PatientDietQuestion
	for uid, rec := range m.diet {
		if u := m.users[uid]; u != nil && !u.AskDietQuestion && rec.LastDietUpdate.Before(dueBefore) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateUserFlags(_ context.Context, userID uint, fields map[string]interface{}) error {
	u := m.users[userID]
	for k, v := range fields {
		switch k {
		case "initial_question_completed":
			u.InitialQuestionCompleted = v.(bool)
		case "is_first_login":
			u.IsFirstLogin = v.(bool)
		case "ask_diet_question":
			u.AskDietQuestion = v.(bool)
		case "last_diet_question_answered":
			t := v.(time.Time)
			u.LastDietQuestionAnswered = &t
		}
	}
	return nil
}

func (m *memRepo) Transaction(_ context.Context, fn func(tx Repository) error) error {
	if m.failTx != nil {
		return m.failTx
	}
	return fn(m)
}

func (m *memRepo) FindByID(_ context.Context, id uint) (*auth.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

type nopAudit struct{}

func (nopAudit) LogAction(context.Context, *access.Actor, access.Resource, *uint, string, map[string]interface{}, error) {
}

type recordingPublisher struct{ events []events.Event }

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.events = append(p.events, evt)
	return nil
}

type fixture struct {
	svc      *service
	repo     *memRepo
	pub      *recordingPublisher
	interval int
	clock    time.Time
	patient  *access.Actor
	admin    *access.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemRepo(),
		pub:      &recordingPublisher{},
		interval: 15,
		clock:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		patient:  &access.Actor{UserID: 100, Role: access.RolePatient},
		admin:    &access.Actor{UserID: 1, Role: access.RoleAdmin},
	}
	f.repo.nextID = 200
	f.repo.users[100] = &auth.User{ID: 100, Role: access.RolePatient, IsFirstLogin: true, IsActive: true}
	svc := NewService(f.repo, f.repo, nopAudit{}, f.pub, func() int { return f.interval }).(*service)
	svc.now = func() time.Time { return f.clock }
	f.svc = svc
	return f
}

func (f *fixture) question(t *testing.T, category Category, typ QuestionType, options ...string) *Question {
	t.Helper()
	in := QuestionInput{Text: "q", Category: category, Type: string(typ), Options: options}
	q, err := f.svc.CreateQuestion(context.Background(), f.admin, in)
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	return q
}

func TestCreateQuestion_Validation(t *testing.T) {
	f := newFixture(t)
	placeholder := "Tell us more"
	tests := []struct {
		name string
		in   QuestionInput
		ok   bool
	}{
		{"radio with options", QuestionInput{Text: "Diet?", Category: CategoryInitial, Type: "radio", Options: []string{"Veg", "Non-veg"}}, true},
		{"description with placeholder", QuestionInput{Text: "Notes", Category: CategoryGeneral, Type: "description", Placeholder: &placeholder}, true},
		{"radio with placeholder", QuestionInput{Text: "Diet?", Category: CategoryInitial, Type: "radio", Placeholder: &placeholder, Options: []string{"a"}}, false},
		{"radio without options", QuestionInput{Text: "Diet?", Category: CategoryInitial, Type: "radio"}, false},
		{"unknown category", QuestionInput{Text: "x", Category: "misc", Type: "description"}, false},
		{"duplicate options", QuestionInput{Text: "x", Category: CategoryDiet, Type: "checkbox", Options: []string{"a", "a"}}, false},
		{"blank text", QuestionInput{Text: " ", Category: CategoryDiet, Type: "description"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateQuestion(context.Background(), f.admin, tt.in)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !tt.ok && apperr.KindOf(err) != apperr.KindValidation {
				t.Fatalf("error = %v, want validation", err)
			}
		})
	}
}

func TestQuestionJSON_HidesDescriptionFieldsOnOtherTypes(t *testing.T) {
	placeholder, max := "p", 200
	radio := Question{Type: TypeRadio, Placeholder: &placeholder, MaxLength: &max}
	b, _ := json.Marshal(radio)
	if strings.Contains(string(b), "placeholder") || strings.Contains(string(b), "max_length") {
		t.Fatalf("radio JSON leaked description fields: %s", b)
	}
	desc := Question{Type: TypeDescription, Placeholder: &placeholder, MaxLength: &max}
	b, _ = json.Marshal(desc)
	if !strings.Contains(string(b), `"placeholder":"p"`) || !strings.Contains(string(b), `"max_length":200`) {
		t.Fatalf("description JSON = %s", b)
	}
}

func TestPatchQuestion_KeepsOptionsUnlessGiven(t *testing.T) {
	f := newFixture(t)
	q := f.question(t, CategoryInitial, TypeRadio, "Yes", "No")
	text := "Are you vegetarian?"
	got, err := f.svc.PatchQuestion(context.Background(), f.admin, q.ID, QuestionPatch{Text: &text})
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != text || len(got.Options) != 2 {
		t.Fatalf("patched = %+v", got)
	}
	if _, err := f.svc.PatchQuestion(context.Background(), f.admin, 9999, QuestionPatch{Text: &text}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("missing question error = %v", err)
	}
}

func TestListQuestions_GatesPatientsUntilInitialComplete(t *testing.T) {
	f := newFixture(t)
	f.question(t, CategoryInitial, TypeRadio, "a")
	f.question(t, CategoryDiet, TypeRadio, "b")
	ctx := context.Background()

	all, err := f.svc.ListQuestions(ctx, f.patient, "")
	if err != nil || len(all.Questions) != 1 || all.Questions[0].Category != CategoryInitial {
		t.Fatalf("incomplete patient sees %+v, %v", all, err)
	}
	diet, _ := f.svc.ListQuestions(ctx, f.patient, CategoryDiet)
	if len(diet.Questions) != 0 || diet.Message != MsgCompleteInitialFirst {
		t.Fatalf("diet before initial = %+v", diet)
	}

	f.repo.users[100].InitialQuestionCompleted = true
	diet, _ = f.svc.ListQuestions(ctx, f.patient, CategoryDiet)
	if len(diet.Questions) != 1 {
		t.Fatalf("completed patient diet questions = %d", len(diet.Questions))
	}
	staff, _ := f.svc.ListQuestions(ctx, f.admin, "")
	if len(staff.Questions) != 2 {
		t.Fatalf("admin sees %d questions", len(staff.Questions))
	}
}

func TestBulkSubmit_ResolvesOptionsAndFreeText(t *testing.T) {
	f := newFixture(t)
	q1 := f.question(t, CategoryInitial, TypeCheckbox, "Rice", "Wheat")
	q2 := f.question(t, CategoryInitial, TypeDescription)

	res, err := f.svc.BulkSubmit(context.Background(), f.patient, []AnswerItem{
		{QuestionID: q1.ID, Answer: AnswerValues{"Rice", "Millet"}},
		{QuestionID: q2.ID, Answer: AnswerValues{"No allergies"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Saved != 3 || !res.InitialQuestionCompleted {
		t.Fatalf("result = %+v", res)
	}
	var structured, free int
	for _, r := range f.repo.responses {
		if r.OptionID != nil {
			structured++
			if *r.OptionID != q1.Options[0].ID {
				t.Errorf("Rice matched option %d", *r.OptionID)
			}
		} else {
			free++
		}
	}
	if structured != 1 || free != 2 {
		t.Fatalf("structured=%d free=%d", structured, free)
	}
	u := f.repo.users[100]
	if !u.InitialQuestionCompleted || u.IsFirstLogin {
		t.Fatalf("flags not flipped: %+v", u)
	}
}

func TestBulkSubmit_PartialDoesNotComplete(t *testing.T) {
	f := newFixture(t)
	q1 := f.question(t, CategoryInitial, TypeRadio, "a")
	f.question(t, CategoryInitial, TypeRadio, "b")

	for i := 0; i < 2; i++ {
		res, err := f.svc.BulkSubmit(context.Background(), f.patient, []AnswerItem{{QuestionID: q1.ID, Answer: AnswerValues{"a"}}})
		if err != nil || res.InitialQuestionCompleted {
			t.Fatalf("attempt %d: %+v %v", i, res, err)
		}
	}
	if len(f.repo.responses) != 1 {
		t.Fatalf("resubmission duplicated rows: %d", len(f.repo.responses))
	}
}

func TestBulkSubmit_Errors(t *testing.T) {
	f := newFixture(t)
	q := f.question(t, CategoryInitial, TypeRadio, "a")
	ctx := context.Background()

	_, err := f.svc.BulkSubmit(ctx, f.patient, []AnswerItem{{QuestionID: 3, Answer: AnswerValues{"x"}}, {QuestionID: 9}})
	if apperr.KindOf(err) != apperr.KindValidation || !strings.Contains(err.Error(), "Invalid question IDs: [3, 9]") {
		t.Fatalf("unknown ids error = %v", err)
	}

	if _, err := f.svc.BulkSubmit(ctx, f.patient, []AnswerItem{{QuestionID: q.ID, Answer: AnswerValues{"a"}}}); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.BulkSubmit(ctx, f.patient, []AnswerItem{{QuestionID: q.ID, Answer: AnswerValues{"a"}}})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("resubmit after completion = %v", err)
	}
}

func TestDietQuestionnaire_Stages(t *testing.T) {
	f := newFixture(t)
	f.question(t, CategoryDiet, TypeRadio, "3 meals", "5 meals")
	ctx := context.Background()

	view, err := f.svc.DietQuestionnaire(ctx, f.patient)
	if err != nil || view.Stage != StageInitialIncomplete || view.Message != MsgCompleteInitialFirst {
		t.Fatalf("stage 1 = %+v %v", view, err)
	}

	f.repo.users[100].InitialQuestionCompleted = true
	view, _ = f.svc.DietQuestionnaire(ctx, f.patient)
	if view.Stage != StageNoDietRecord || len(view.Questions) != 1 {
		t.Fatalf("stage 2 = %+v", view)
	}

	if _, err := f.svc.SubmitDietAnswers(ctx, f.patient, DietSubmission{MealData: map[string]interface{}{"breakfast": "idli"}}); err != nil {
		t.Fatal(err)
	}
	if f.repo.users[100].AskDietQuestion || f.repo.users[100].LastDietQuestionAnswered == nil {
		t.Fatalf("flags after submit = %+v", f.repo.users[100])
	}

	f.clock = f.clock.AddDate(0, 0, 14)
	view, _ = f.svc.DietQuestionnaire(ctx, f.patient)
	if view.Stage != StageDietCurrent || *view.NextDueDate != "2025-06-16" {
		t.Fatalf("day 14 = %+v", view)
	}
	_, err = f.svc.SubmitDietAnswers(ctx, f.patient, DietSubmission{MealData: map[string]interface{}{"lunch": "rice"}})
	if apperr.KindOf(err) != apperr.KindConflict || !strings.Contains(err.Error(), "2025-06-16") {
		t.Fatalf("early resubmit = %v", err)
	}

	f.clock = f.clock.AddDate(0, 0, 1)
	view, _ = f.svc.DietQuestionnaire(ctx, f.patient)
	if view.Stage != StageDietDue || !f.repo.users[100].AskDietQuestion || len(view.LastAnswers) == 0 {
		t.Fatalf("day 15 = %+v", view)
	}
}

func TestDietQuestionnaire_IntervalReadAtEvaluation(t *testing.T) {
	f := newFixture(t)
	f.repo.users[100].InitialQuestionCompleted = true
	f.repo.diet[100] = &PatientDietQuestion{UserID: 100, LastDietUpdate: f.clock.AddDate(0, 0, -10)}

	view, _ := f.svc.DietQuestionnaire(context.Background(), f.patient)
	if view.Stage != StageDietCurrent {
		t.Fatalf("15 day interval stage = %s", view.Stage)
	}
	f.interval = 7
	view, _ = f.svc.DietQuestionnaire(context.Background(), f.patient)
	if view.Stage != StageDietDue {
		t.Fatalf("7 day interval stage = %s", view.Stage)
	}
}

func TestMarkDietQuestionsDue(t *testing.T) {
	f := newFixture(t)
	f.repo.users[101] = &auth.User{ID: 101, Role: access.RolePatient, IsActive: true}
	f.repo.diet[100] = &PatientDietQuestion{UserID: 100, LastDietUpdate: f.clock.AddDate(0, 0, -15)}
	f.repo.diet[101] = &PatientDietQuestion{UserID: 101, LastDietUpdate: f.clock.AddDate(0, 0, -14)}

	flagged, err := f.svc.MarkDietQuestionsDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(flagged) != 1 || flagged[0] != 100 || !f.repo.users[100].AskDietQuestion || f.repo.users[101].AskDietQuestion {
		t.Fatalf("flagged = %v", flagged)
	}
	if len(f.pub.events) != 1 || f.pub.events[0].Type != events.DietQuestionDue {
		t.Fatalf("events = %+v", f.pub.events)
	}
}

func TestListResponses_PatientSeesOwnOnly(t *testing.T) {
	f := newFixture(t)
	f.repo.responses = []PatientResponse{{UserID: 100, QuestionID: 1}, {UserID: 55, QuestionID: 1}}
	other := uint(55)
	rows, err := f.svc.ListResponses(context.Background(), f.patient, &other)
	if err != nil || len(rows) != 1 || rows[0].UserID != 100 {
		t.Fatalf("patient rows = %+v %v", rows, err)
	}
	rows, _ = f.svc.ListResponses(context.Background(), f.admin, nil)
	if len(rows) != 2 {
		t.Fatalf("admin rows = %d", len(rows))
	}
}
