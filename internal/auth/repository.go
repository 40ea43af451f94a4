package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User, columns ...string) error
	FindByID(ctx context.Context, id uint) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, filter UserFilter) ([]User, error)
	IDsByRole(ctx context.Context, role access.Role) ([]uint, error)

	FindGroupByName(ctx context.Context, name string) (*Group, error)
	ReplaceGroupCapabilities(ctx context.Context, name string, codenames []string) error
	ListGroups(ctx context.Context) ([]Group, error)
}

var errNoColumns = errors.New("auth: update needs at least one column")

type repository struct{ db *gorm.DB }

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}

func (r *repository) Create(ctx context.Context, user *User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// Update writes only the named columns of user.
func (r *repository) Update(ctx context.Context, user *User, columns ...string) error {
	if len(columns) == 0 {
		return errNoColumns
	}
	return r.db.WithContext(ctx).Model(user).Select(columns).Updates(user).Error
}

func (r *repository) withGroups(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Groups.Capabilities")
}

func (r *repository) FindByID(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := r.withGroups(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) FindByPhone(ctx context.Context, phone string) (*User, error) {
	var u User
	if err := r.withGroups(ctx).Where("phone_number = ?", phone).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := r.withGroups(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) List(ctx context.Context, filter UserFilter) ([]User, error) {
	query := r.db.WithContext(ctx).Model(&User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Phone != "" {
		query = query.Where("phone_number ILIKE ?", "%"+filter.Phone+"%")
	}
	if filter.FirstName != "" {
		query = query.Where("first_name ILIKE ?", "%"+filter.FirstName+"%")
	}
	if filter.LastName != "" {
		query = query.Where("last_name ILIKE ?", "%"+filter.LastName+"%")
	}
	var users []User
	err := query.Order("id ASC").Find(&users).Error
	return users, err
}

func (r *repository) IDsByRole(ctx context.Context, role access.Role) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&User{}).
		Where("role = ? AND is_active = ?", role, true).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) FindGroupByName(ctx context.Context, name string) (*Group, error) {
	var g Group
	if err := r.db.WithContext(ctx).Preload("Capabilities").Where("name = ?", name).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// ReplaceGroupCapabilities creates the group if needed and sets its capabilities.
func (r *repository) ReplaceGroupCapabilities(ctx context.Context, name string, codenames []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g := Group{Name: name}
		if err := tx.Where(Group{Name: name}).FirstOrCreate(&g).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", g.ID).Delete(&GroupCapability{}).Error; err != nil {
			return err
		}
		if len(codenames) == 0 {
			return nil
		}
		caps := make([]GroupCapability, 0, len(codenames))
		for _, c := range codenames {
			caps = append(caps, GroupCapability{GroupID: g.ID, Codename: c})
		}
		return tx.Create(&caps).Error
	})
}

func (r *repository) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	err := r.db.WithContext(ctx).Preload("Capabilities").Order("name").Find(&groups).Error
	return groups, err
}
