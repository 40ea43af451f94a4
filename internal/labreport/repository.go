package labreport

import (
	"context"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/utils"
)

type Repository interface {
	Create(ctx context.Context, r *LabReport) error
	Save(ctx context.Context, r *LabReport) error
	Delete(ctx context.Context, id uint) error
	Get(ctx context.Context, id uint) (*LabReport, error)
	// CountScoped counts reports before any filter; patientID nil means all.
	CountScoped(ctx context.Context, patientID *uint) (int64, error)
	// List applies filters on top of the scope. limit <= 0 returns every row.
	List(ctx context.Context, patientID *uint, f Filter, offset, limit int) ([]Listed, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rep *LabReport) error {
	return r.db.WithContext(ctx).Create(rep).Error
}

func (r *repository) Save(ctx context.Context, rep *LabReport) error {
	return r.db.WithContext(ctx).Save(rep).Error
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&LabReport{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Get(ctx context.Context, id uint) (*LabReport, error) {
	var rep LabReport
	if err := r.db.WithContext(ctx).First(&rep, id).Error; err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *repository) scoped(ctx context.Context, patientID *uint) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&LabReport{})
	if patientID != nil {
		q = q.Where("lab_reports.patient_id = ?", *patientID)
	}
	return q
}

func (r *repository) CountScoped(ctx context.Context, patientID *uint) (int64, error) {
	var n int64
	err := r.scoped(ctx, patientID).Count(&n).Error
	return n, err
}

func (r *repository) filtered(ctx context.Context, patientID *uint, f Filter) *gorm.DB {
	q := r.scoped(ctx, patientID).
		Joins("JOIN users p ON p.id = lab_reports.patient_id").
		Joins("LEFT JOIN users u ON u.id = lab_reports.uploaded_by_id")

	if f.PatientName != "" {
		like := "%" + f.PatientName + "%"
		q = q.Where("p.username ILIKE ? OR p.first_name ILIKE ? OR p.last_name ILIKE ?", like, like, like)
	}
	if f.Phone != "" {
		q = q.Where("p.phone_number ILIKE ?", "%"+f.Phone+"%")
	}
	if f.UploadedBy != "" {
		q = q.Where("u.username ILIKE ?", "%"+f.UploadedBy+"%")
	}
	if f.ReportDate != nil {
		q = q.Where("lab_reports.date_of_report = ?", *f.ReportDate)
	}
	if f.FromDate != nil {
		q = q.Where("lab_reports.date_of_report >= ?", utils.DateOf(*f.FromDate))
	}
	if f.ToDate != nil {
		q = q.Where("lab_reports.date_of_report <= ?", utils.DateOf(*f.ToDate))
	}
	return q
}

func (r *repository) List(ctx context.Context, patientID *uint, f Filter, offset, limit int) ([]Listed, int64, error) {
	var total int64
	if err := r.filtered(ctx, patientID, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := r.filtered(ctx, patientID, f).Select(`lab_reports.*,
		TRIM(CONCAT(p.first_name, ' ', p.last_name)) AS patient_name,
		COALESCE(p.phone_number, '') AS patient_phone,
		COALESCE(u.username, '') AS uploaded_by_name`).
		Order("lab_reports.date_of_report DESC, lab_reports.id DESC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	var out []Listed
	if err := q.Scan(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
