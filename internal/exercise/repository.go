package exercise

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sharath018/health-management-backend/utils"
)

type Repository interface {
	Create(ctx context.Context, e *Exercise) error
	Save(ctx context.Context, e *Exercise) error
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (*Exercise, error)
	// List restricts to userID when it is non-nil.
	List(ctx context.Context, userID *uint, f Filter) ([]Exercise, error)

	UpsertStatus(ctx context.Context, st *ExerciseStatus, keepAudio bool) error
	GetStatus(ctx context.Context, userID, exerciseID uint) (*ExerciseStatus, error)

	CreateResponse(ctx context.Context, r *DoctorExerciseResponse) error
	ListResponses(ctx context.Context, exerciseID uint) ([]DoctorExerciseResponse, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, e *Exercise) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *repository) Save(ctx context.Context, e *Exercise) error {
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exercise_id = ?", id).Delete(&ExerciseStatus{}).Error; err != nil {
			return err
		}
		if err := tx.Where("exercise_id = ?", id).Delete(&DoctorExerciseResponse{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Exercise{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *repository) Get(ctx context.Context, id uint) (*Exercise, error) {
	var e Exercise
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) List(ctx context.Context, userID *uint, f Filter) ([]Exercise, error) {
	query := r.db.WithContext(ctx).Model(&Exercise{})
	if userID != nil {
		query = query.Where("exercises.user_id = ?", *userID)
	}
	if f.PatientName != "" {
		like := "%" + f.PatientName + "%"
		query = query.Joins("JOIN users ON users.id = exercises.user_id").
			Where("users.first_name ILIKE ? OR users.last_name ILIKE ? OR users.username ILIKE ?", like, like, like)
	}
	if f.ExerciseName != "" {
		query = query.Where("exercises.name ILIKE ?", "%"+f.ExerciseName+"%")
	}
	if f.ExerciseType != "" {
		query = query.Where("exercises.type = ?", f.ExerciseType)
	}
	if f.FromDate != nil {
		query = query.Where("exercises.date >= ?", utils.DateOf(*f.FromDate))
	}
	if f.ToDate != nil {
		query = query.Where("exercises.date <= ?", utils.DateOf(*f.ToDate))
	}
	var out []Exercise
	err := query.Order("exercises.date DESC, exercises.id DESC").Find(&out).Error
	return out, err
}

// UpsertStatus relies on the (user, exercise) unique index.
func (r *repository) UpsertStatus(ctx context.Context, st *ExerciseStatus, keepAudio bool) error {
	columns := []string{"status", "updated_at", "updated_by_id"}
	if !keepAudio {
		columns = append(columns, "reason_audio_url")
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "exercise_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(st).Error
}

func (r *repository) GetStatus(ctx context.Context, userID, exerciseID uint) (*ExerciseStatus, error) {
	var st ExerciseStatus
	err := r.db.WithContext(ctx).Where("user_id = ? AND exercise_id = ?", userID, exerciseID).First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *repository) CreateResponse(ctx context.Context, resp *DoctorExerciseResponse) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

func (r *repository) ListResponses(ctx context.Context, exerciseID uint) ([]DoctorExerciseResponse, error) {
	var out []DoctorExerciseResponse
	err := r.db.WithContext(ctx).Where("exercise_id = ?", exerciseID).Order("created_at ASC").Find(&out).Error
	return out, err
}
