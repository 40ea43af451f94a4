package access

import "time"

// AuditFields is embedded by every persisted entity.
type AuditFields struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedByID *uint     `gorm:"index" json:"created_by,omitempty"`
	UpdatedByID *uint     `json:"updated_by,omitempty"`
}

func (a *AuditFields) StampCreate(actor *Actor, now time.Time) {
	a.CreatedAt = now
	a.UpdatedAt = now
	a.CreatedByID = actor.IDPtr()
	a.UpdatedByID = actor.IDPtr()
}

func (a *AuditFields) StampUpdate(actor *Actor, now time.Time) {
	a.UpdatedAt = now
	a.UpdatedByID = actor.IDPtr()
}
