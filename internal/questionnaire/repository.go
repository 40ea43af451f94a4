package questionnaire

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sharath018/health-management-backend/internal/auth"
)

type Repository interface {
	CreateQuestion(ctx context.Context, q *Question) error
	SaveQuestion(ctx context.Context, q *Question, replaceOptions bool) error
	DeleteQuestion(ctx context.Context, id uint) error
	GetQuestion(ctx context.Context, id uint) (*Question, error)
	ListQuestions(ctx context.Context, category Category) ([]Question, error)
	QuestionsByIDs(ctx context.Context, ids []uint) ([]Question, error)
	CountQuestions(ctx context.Context, category Category) (int64, error)

	ReplaceResponses(ctx context.Context, userID uint, questionIDs []uint, rows []PatientResponse) error
	CountAnsweredQuestions(ctx context.Context, userID uint, category Category) (int64, error)
	ListResponses(ctx context.Context, userID *uint) ([]PatientResponse, error)

	GetDietRecord(ctx context.Context, userID uint) (*PatientDietQuestion, error)
	UpsertDietRecord(ctx context.Context, rec *PatientDietQuestion) error
	DueDietRecords(ctx context.Context, dueBefore time.Time) ([]PatientDietQuestion, error)

	UpdateUserFlags(ctx context.Context, userID uint, fields map[string]interface{}) error

	// Transaction runs fn against a repository bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) CreateQuestion(ctx context.Context, q *Question) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// SaveQuestion updates the row and, when asked, swaps the option set.
func (r *repository) SaveQuestion(ctx context.Context, q *Question, replaceOptions bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(q).Error; err != nil {
			return err
		}
		if !replaceOptions {
			return nil
		}
		if err := tx.Where("question_id = ?", q.ID).Delete(&Option{}).Error; err != nil {
			return err
		}
		for i := range q.Options {
			q.Options[i].ID = 0
			q.Options[i].QuestionID = q.ID
		}
		if len(q.Options) == 0 {
			return nil
		}
		return tx.Create(&q.Options).Error
	})
}

func (r *repository) DeleteQuestion(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&PatientResponse{}).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", id).Delete(&Option{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Question{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *repository) GetQuestion(ctx context.Context, id uint) (*Question, error) {
	var q Question
	if err := r.db.WithContext(ctx).Preload("Options", orderByID).First(&q, id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func orderByID(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }

func (r *repository) ListQuestions(ctx context.Context, category Category) ([]Question, error) {
	query := r.db.WithContext(ctx).Preload("Options", orderByID)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var out []Question
	err := query.Order("sort_order ASC, id ASC").Find(&out).Error
	return out, err
}

func (r *repository) QuestionsByIDs(ctx context.Context, ids []uint) ([]Question, error) {
	var out []Question
	if len(ids) == 0 {
		return out, nil
	}
	err := r.db.WithContext(ctx).Preload("Options", orderByID).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *repository) CountQuestions(ctx context.Context, category Category) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Question{}).Where("category = ?", category).Count(&n).Error
	return n, err
}

func (r *repository) ReplaceResponses(ctx context.Context, userID uint, questionIDs []uint, rows []PatientResponse) error {
	db := r.db.WithContext(ctx)
	if len(questionIDs) > 0 {
		if err := db.Where("user_id = ? AND question_id IN ?", userID, questionIDs).Delete(&PatientResponse{}).Error; err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Omit("Option").Create(&rows).Error
}

// CountAnsweredQuestions counts distinct questions of category the user answered.
func (r *repository) CountAnsweredQuestions(ctx context.Context, userID uint, category Category) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&PatientResponse{}).
		Joins("JOIN questions ON questions.id = patient_responses.question_id").
		Where("patient_responses.user_id = ? AND questions.category = ?", userID, category).
		Distinct("patient_responses.question_id").
		Count(&n).Error
	return n, err
}

func (r *repository) ListResponses(ctx context.Context, userID *uint) ([]PatientResponse, error) {
	query := r.db.WithContext(ctx).Preload("Option")
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	var out []PatientResponse
	err := query.Order("user_id ASC, question_id ASC, id ASC").Find(&out).Error
	return out, err
}

func (r *repository) GetDietRecord(ctx context.Context, userID uint) (*PatientDietQuestion, error) {
	var rec PatientDietQuestion
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) UpsertDietRecord(ctx context.Context, rec *PatientDietQuestion) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"meal_data", "last_diet_update", "updated_at", "updated_by_id"}),
	}).Create(rec).Error
}

// DueDietRecords returns records whose last update is before dueBefore and
// whose owner is not flagged yet.
func (r *repository) DueDietRecords(ctx context.Context, dueBefore time.Time) ([]PatientDietQuestion, error) {
	var out []PatientDietQuestion
	err := r.db.WithContext(ctx).
		Joins("JOIN users ON users.id = patient_diet_questions.user_id").
		Where("patient_diet_questions.last_diet_update < ? AND users.ask_diet_question = ? AND users.is_active = ?", dueBefore, false, true).
		Find(&out).Error
	return out, err
}

func (r *repository) UpdateUserFlags(ctx context.Context, userID uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&auth.User{}).Where("id = ?", userID).Updates(fields).Error
}
