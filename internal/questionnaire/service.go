package questionnaire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auditlog"
	"github.com/sharath018/health-management-backend/internal/auth"
	"github.com/sharath018/health-management-backend/internal/events"
)

const (
	MsgCompleteInitialFirst = "Please complete the initial questions first."
	MsgInitialAlreadyDone   = "Initial questions have already been completed."
	MsgDietDue              = "Your diet details are due for an update. Please review your previous answers."
	MsgResponsesSaved       = "Responses saved successfully."
)

// UserStore is the slice of auth.Repository the questionnaire needs.
type UserStore interface {
	FindByID(ctx context.Context, id uint) (*auth.User, error)
}

type Service interface {
	CreateQuestion(ctx context.Context, actor *access.Actor, in QuestionInput) (*Question, error)
	ReplaceQuestion(ctx context.Context, actor *access.Actor, id uint, in QuestionInput) (*Question, error)
	PatchQuestion(ctx context.Context, actor *access.Actor, id uint, in QuestionPatch) (*Question, error)
	DeleteQuestion(ctx context.Context, actor *access.Actor, id uint) error
	GetQuestion(ctx context.Context, actor *access.Actor, id uint) (*Question, error)
	ListQuestions(ctx context.Context, actor *access.Actor, category Category) (*QuestionList, error)

	BulkSubmit(ctx context.Context, actor *access.Actor, items []AnswerItem) (*BulkResult, error)
	ListResponses(ctx context.Context, actor *access.Actor, userID *uint) ([]PatientResponse, error)

	DietQuestionnaire(ctx context.Context, actor *access.Actor) (*DietQuestionnaireView, error)
	SubmitDietAnswers(ctx context.Context, actor *access.Actor, in DietSubmission) (*DietQuestionnaireView, error)
	MarkDietQuestionsDue(ctx context.Context) ([]uint, error)
}

type service struct {
	repo         Repository
	users        UserStore
	audit        auditlog.Logger
	publisher    events.Publisher
	intervalDays func() int
	now          func() time.Time
}

// NewService reads the diet interval through intervalDays on every evaluation,
// so configuration changes apply without touching stored rows.
func NewService(repo Repository, users UserStore, audit auditlog.Logger, publisher events.Publisher, intervalDays func() int) Service {
	return &service{
		repo:         repo,
		users:        users,
		audit:        audit,
		publisher:    publisher,
		intervalDays: intervalDays,
		now:          time.Now,
	}
}

// =============================
// Questions
// =============================

func validateQuestion(q *Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return apperr.Validation("text is required")
	}
	if !q.Category.Valid() {
		return apperr.Validation("category must be one of initial, diet, general")
	}
	if !q.Type.Valid() {
		return apperr.Validation("type must be one of radio, checkbox, description")
	}
	if q.Type != TypeDescription {
		if q.Placeholder != nil || q.MaxLength != nil {
			return apperr.Validation("placeholder and max_length are only allowed for description questions")
		}
		if len(q.Options) == 0 {
			return apperr.Validation("%s questions need at least one option", q.Type)
		}
	}
	if q.MaxLength != nil && *q.MaxLength <= 0 {
		return apperr.Validation("max_length must be positive")
	}
	seen := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		v := strings.TrimSpace(o.Value)
		if v == "" {
			return apperr.Validation("option values cannot be empty")
		}
		if seen[v] {
			return apperr.Validation("duplicate option %q", v)
		}
		seen[v] = true
	}
	return nil
}

func toOptions(values []string) []Option {
	out := make([]Option, 0, len(values))
	for _, v := range values {
		out = append(out, Option{Value: strings.TrimSpace(v)})
	}
	return out
}

func (s *service) CreateQuestion(ctx context.Context, actor *access.Actor, in QuestionInput) (*Question, error) {
	q := &Question{
		Text:        strings.TrimSpace(in.Text),
		Category:    in.Category,
		Type:        QuestionType(in.Type),
		Placeholder: in.Placeholder,
		MaxLength:   in.MaxLength,
		Options:     toOptions(in.Options),
	}
	if in.Order != nil {
		q.SortOrder = *in.Order
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	q.StampCreate(actor, s.now())
	err := s.repo.CreateQuestion(ctx, q)
	s.audit.LogAction(ctx, actor, access.ResourceQuestion, &q.ID, "QUESTION_CREATED", map[string]interface{}{"category": q.Category}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return q, nil
}

func (s *service) loadQuestion(ctx context.Context, id uint) (*Question, error) {
	q, err := s.repo.GetQuestion(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Question not found.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return q, nil
}

// ReplaceQuestion is the PUT path: every field is taken from in.
func (s *service) ReplaceQuestion(ctx context.Context, actor *access.Actor, id uint, in QuestionInput) (*Question, error) {
	q, err := s.loadQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Text = strings.TrimSpace(in.Text)
	q.Category = in.Category
	q.Type = QuestionType(in.Type)
	q.Placeholder = in.Placeholder
	q.MaxLength = in.MaxLength
	q.SortOrder = 0
	if in.Order != nil {
		q.SortOrder = *in.Order
	}
	q.Options = toOptions(in.Options)
	return s.saveQuestion(ctx, actor, q, true, "QUESTION_REPLACED")
}

// PatchQuestion is the PATCH path.
func (s *service) PatchQuestion(ctx context.Context, actor *access.Actor, id uint, in QuestionPatch) (*Question, error) {
	q, err := s.loadQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Text != nil {
		q.Text = strings.TrimSpace(*in.Text)
	}
	if in.Category != nil {
		q.Category = *in.Category
	}
	if in.Type != nil {
		q.Type = QuestionType(*in.Type)
		if q.Type != TypeDescription && in.Placeholder == nil && in.MaxLength == nil {
			q.Placeholder, q.MaxLength = nil, nil
		}
	}
	if in.Placeholder != nil {
		q.Placeholder = in.Placeholder
	}
	if in.MaxLength != nil {
		q.MaxLength = in.MaxLength
	}
	if in.Order != nil {
		q.SortOrder = *in.Order
	}
	replace := in.Options != nil
	if replace {
		q.Options = toOptions(*in.Options)
	}
	return s.saveQuestion(ctx, actor, q, replace, "QUESTION_UPDATED")
}

func (s *service) saveQuestion(ctx context.Context, actor *access.Actor, q *Question, replaceOptions bool, action string) (*Question, error) {
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	q.StampUpdate(actor, s.now())
	err := s.repo.SaveQuestion(ctx, q, replaceOptions)
	s.audit.LogAction(ctx, actor, access.ResourceQuestion, &q.ID, action, nil, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return q, nil
}

func (s *service) DeleteQuestion(ctx context.Context, actor *access.Actor, id uint) error {
	err := s.repo.DeleteQuestion(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Question not found.")
	}
	s.audit.LogAction(ctx, actor, access.ResourceQuestion, &id, "QUESTION_DELETED", nil, err)
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *service) GetQuestion(ctx context.Context, actor *access.Actor, id uint) (*Question, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	return s.loadQuestion(ctx, id)
}

// ListQuestions gates patients on onboarding: before the initial set is
// complete only initial questions are returned.
func (s *service) ListQuestions(ctx context.Context, actor *access.Actor, category Category) (*QuestionList, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if category != "" && !category.Valid() {
		return nil, apperr.Validation("unknown category %q", category)
	}
	if access.FollowsQuestionnaireWorkflow(actor.Role) {
		user, err := s.users.FindByID(ctx, actor.UserID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if !user.InitialQuestionCompleted {
			if category != "" && category != CategoryInitial {
				return &QuestionList{Questions: []Question{}, Message: MsgCompleteInitialFirst}, nil
			}
			category = CategoryInitial
		}
	}
	qs, err := s.repo.ListQuestions(ctx, category)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if qs == nil {
		qs = []Question{}
	}
	return &QuestionList{Questions: qs}, nil
}

// =============================
// Responses
// =============================

// resolveAnswers turns submitted values into response rows. Each value is
// matched against the question's options by exact value; a match stores the
// option, anything else is kept as free text.
func resolveAnswers(userID uint, items []AnswerItem, questions map[uint]*Question) ([]PatientResponse, []uint) {
	var rows []PatientResponse
	var ids []uint
	seen := make(map[uint]bool)
	for _, item := range items {
		q := questions[item.QuestionID]
		if !seen[q.ID] {
			seen[q.ID] = true
			ids = append(ids, q.ID)
		}
		for _, raw := range item.Answer {
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			row := PatientResponse{UserID: userID, QuestionID: q.ID}
			if opt := matchOption(q.Options, value); opt != nil {
				id := opt.ID
				row.OptionID = &id
			} else {
				row.Response = value
			}
			rows = append(rows, row)
		}
	}
	return rows, ids
}

func matchOption(options []Option, value string) *Option {
	for i := range options {
		if options[i].Value == value {
			return &options[i]
		}
	}
	return nil
}

// loadSubmitted resolves question ids, rejecting unknown ones and, when
// category is set, questions from other categories.
func (s *service) loadSubmitted(ctx context.Context, items []AnswerItem, category Category) (map[uint]*Question, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("At least one answer is required.")
	}
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.QuestionID)
	}
	found, err := s.repo.QuestionsByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	byID := make(map[uint]*Question, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	var invalid []string
	seen := make(map[uint]bool)
	for _, id := range ids {
		q, ok := byID[id]
		if (!ok || (category != "" && q.Category != category)) && !seen[id] {
			invalid = append(invalid, fmt.Sprint(id))
			seen[id] = true
		}
	}
	if len(invalid) > 0 {
		return nil, apperr.Validation("Invalid question IDs: [%s]", strings.Join(invalid, ", "))
	}
	return byID, nil
}

// BulkSubmit stores onboarding answers and flips the completion flags in the
// same transaction once every initial question has an answer.
func (s *service) BulkSubmit(ctx context.Context, actor *access.Actor, items []AnswerItem) (*BulkResult, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user.InitialQuestionCompleted {
		return nil, apperr.Conflict(MsgInitialAlreadyDone)
	}
	questions, err := s.loadSubmitted(ctx, items, "")
	if err != nil {
		return nil, err
	}
	rows, questionIDs := resolveAnswers(actor.UserID, items, questions)
	now := s.now()
	for i := range rows {
		rows[i].StampCreate(actor, now)
	}

	result := &BulkResult{Message: MsgResponsesSaved, Saved: len(rows)}
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.ReplaceResponses(ctx, actor.UserID, questionIDs, rows); err != nil {
			return err
		}
		answered, err := tx.CountAnsweredQuestions(ctx, actor.UserID, CategoryInitial)
		if err != nil {
			return err
		}
		total, err := tx.CountQuestions(ctx, CategoryInitial)
		if err != nil {
			return err
		}
		if total > 0 && answered >= total {
			result.InitialQuestionCompleted = true
			return tx.UpdateUserFlags(ctx, actor.UserID, map[string]interface{}{
				"initial_question_completed": true,
				"is_first_login":             false,
				"updated_at":                 now,
			})
		}
		return nil
	})
	s.audit.LogAction(ctx, actor, access.ResourcePatientResponse, nil, "RESPONSES_SUBMITTED", map[string]interface{}{
		"questions":         questionIDs,
		"initial_completed": result.InitialQuestionCompleted,
	}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return result, nil
}

// ListResponses: patients always get their own rows; staff may pick a user.
func (s *service) ListResponses(ctx context.Context, actor *access.Actor, userID *uint) ([]PatientResponse, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !access.SeesAllPatients(actor.Role) {
		own := actor.UserID
		userID = &own
	}
	rows, err := s.repo.ListResponses(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if rows == nil {
		rows = []PatientResponse{}
	}
	return rows, nil
}

// =============================
// Diet questionnaire
// =============================

func (s *service) dietRecord(ctx context.Context, userID uint) (*PatientDietQuestion, error) {
	rec, err := s.repo.GetDietRecord(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rec, nil
}

func (s *service) dietQuestions(ctx context.Context) ([]Question, error) {
	qs, err := s.repo.ListQuestions(ctx, CategoryDiet)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if qs == nil {
		qs = []Question{}
	}
	return qs, nil
}

func formatDate(t time.Time) *string {
	s := t.Format("2006-01-02")
	return &s
}

// DietQuestionnaire surfaces the diet form according to the patient's stage.
func (s *service) DietQuestionnaire(ctx context.Context, actor *access.Actor) (*DietQuestionnaireView, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	if !access.FollowsQuestionnaireWorkflow(actor.Role) {
		qs, err := s.dietQuestions(ctx)
		if err != nil {
			return nil, err
		}
		return &DietQuestionnaireView{Questions: qs}, nil
	}

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rec, err := s.dietRecord(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	interval := s.intervalDays()
	stage := Evaluate(user.InitialQuestionCompleted, rec, s.now(), interval)
	view := &DietQuestionnaireView{Stage: stage, Questions: []Question{}}

	switch stage {
	case StageInitialIncomplete:
		view.Message = MsgCompleteInitialFirst
		return view, nil
	case StageDietDue:
		if !user.AskDietQuestion {
			if err := s.repo.UpdateUserFlags(ctx, user.ID, map[string]interface{}{"ask_diet_question": true}); err != nil {
				return nil, apperr.Internal(err)
			}
		}
		view.Message = MsgDietDue
	}

	if view.Questions, err = s.dietQuestions(ctx); err != nil {
		return nil, err
	}
	if rec != nil {
		view.LastAnswers = rec.MealData
		last := rec.LastDietUpdate
		view.LastDietUpdate = &last
		view.NextDueDate = formatDate(NextDueDate(rec.LastDietUpdate, interval))
	}
	return view, nil
}

// SubmitDietAnswers records diet answers when the patient has no record yet
// or the record is due. Submitting while current is a conflict.
func (s *service) SubmitDietAnswers(ctx context.Context, actor *access.Actor, in DietSubmission) (*DietQuestionnaireView, error) {
	if err := access.RequireAuthenticated(actor); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	rec, err := s.dietRecord(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	interval := s.intervalDays()
	now := s.now()
	switch Evaluate(user.InitialQuestionCompleted, rec, now, interval) {
	case StageInitialIncomplete:
		return nil, apperr.Conflict(MsgCompleteInitialFirst)
	case StageDietCurrent:
		due := NextDueDate(rec.LastDietUpdate, interval).Format("2006-01-02")
		return nil, apperr.Conflict(fmt.Sprintf("Diet questions were already answered. The next update is due on %s.", due))
	}

	var rows []PatientResponse
	var questionIDs []uint
	if len(in.Answers) > 0 {
		questions, err := s.loadSubmitted(ctx, in.Answers, CategoryDiet)
		if err != nil {
			return nil, err
		}
		rows, questionIDs = resolveAnswers(actor.UserID, in.Answers, questions)
		for i := range rows {
			rows[i].StampCreate(actor, now)
		}
	} else if len(in.MealData) == 0 {
		return nil, apperr.Validation("answers or meal_data is required")
	}

	mealData, err := json.Marshal(in.MealData)
	if err != nil {
		return nil, apperr.Validation("meal_data must be a JSON object")
	}
	newRec := &PatientDietQuestion{UserID: actor.UserID, MealData: mealData, LastDietUpdate: now}
	newRec.StampCreate(actor, now)

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.ReplaceResponses(ctx, actor.UserID, questionIDs, rows); err != nil {
			return err
		}
		if err := tx.UpsertDietRecord(ctx, newRec); err != nil {
			return err
		}
		return tx.UpdateUserFlags(ctx, actor.UserID, map[string]interface{}{
			"ask_diet_question":           false,
			"last_diet_question_answered": now,
			"updated_at":                  now,
		})
	})
	s.audit.LogAction(ctx, actor, access.ResourcePatientDietQuestion, &actor.UserID, "DIET_QUESTIONS_SUBMITTED", map[string]interface{}{"answers": len(rows)}, err)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	qs, err := s.dietQuestions(ctx)
	if err != nil {
		return nil, err
	}
	last := now
	return &DietQuestionnaireView{
		Stage:          StageDietCurrent,
		Questions:      qs,
		Message:        "Diet details saved successfully.",
		LastAnswers:    mealData,
		LastDietUpdate: &last,
		NextDueDate:    formatDate(NextDueDate(now, interval)),
	}, nil
}

// MarkDietQuestionsDue flags every patient whose diet record fell due and
// announces it. Returns the flagged user ids in ascending order.
func (s *service) MarkDietQuestionsDue(ctx context.Context) ([]uint, error) {
	now := s.now()
	cutoff := dateOf(now).AddDate(0, 0, 1-s.intervalDays())
	due, err := s.repo.DueDietRecords(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	var flagged []uint
	for _, rec := range due {
		if Evaluate(true, &rec, now, s.intervalDays()) != StageDietDue {
			continue
		}
		if err := s.repo.UpdateUserFlags(ctx, rec.UserID, map[string]interface{}{"ask_diet_question": true}); err != nil {
			return flagged, err
		}
		flagged = append(flagged, rec.UserID)
		events.Emit(ctx, s.publisher, events.Event{
			Type:       events.DietQuestionDue,
			UserID:     rec.UserID,
			Title:      "Diet check-in due",
			Body:       "It's time to update your diet details.",
			OccurredAt: now,
		})
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i] < flagged[j] })
	return flagged, nil
}
