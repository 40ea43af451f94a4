package userprofile

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/internal/apperr"
	"github.com/sharath018/health-management-backend/internal/auth"
)

type memProfiles struct {
	byUser map[uint]*Profile
	next   uint
}

func (m *memProfiles) GetByUserID(_ context.Context, userID uint) (*Profile, error) {
	p, ok := m.byUser[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) Create(_ context.Context, p *Profile) error {
	m.next++
	p.ID = m.next
	cp := *p
	m.byUser[p.UserID] = &cp
	return nil
}

func (m *memProfiles) Update(_ context.Context, p *Profile) error {
	cp := *p
	m.byUser[p.UserID] = &cp
	return nil
}

type memUsers map[uint]*auth.User

func (m memUsers) FindByID(_ context.Context, id uint) (*auth.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) Update(_ context.Context, u *auth.User, _ ...string) error {
	cp := *u
	m[u.ID] = &cp
	return nil
}

type stubFiles struct{ folder string }

func (s *stubFiles) Save(_ context.Context, folder, filename string, body io.Reader, _ string) (string, error) {
	s.folder = folder
	_, _ = io.ReadAll(body)
	return "http://files/" + folder + "/" + filename, nil
}

type nopAudit struct{}

func (nopAudit) LogAction(context.Context, *access.Actor, access.Resource, *uint, string, map[string]interface{}, error) {
}

func newTestService() (*service, *memProfiles, memUsers) {
	phone := "+919876543210"
	users := memUsers{
		1: {ID: 1, Username: "919876543210", PhoneNumber: &phone, Role: access.RolePatient, FirstName: "Asha"},
		2: {ID: 2, Username: "doc", Role: access.RoleDoctor, FirstName: "Ravi"},
	}
	profiles := &memProfiles{byUser: map[uint]*Profile{}}
	svc := NewService(profiles, users, &stubFiles{}, nopAudit{}).(*service)
	svc.now = func() time.Time { return time.Date(2025, 3, 21, 12, 0, 0, 0, time.UTC) }
	return svc, profiles, users
}

func strPtr(s string) *string { return &s }

func TestGet_CreatesLazily(t *testing.T) {
	svc, profiles, _ := newTestService()
	actor := &access.Actor{UserID: 1, Role: access.RolePatient}
	got, err := svc.Get(context.Background(), actor)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID == 0 || got.FirstName != "Asha" || got.PhoneNumber != "+919876543210" {
		t.Errorf("Get() = %+v", got)
	}
	if len(profiles.byUser) != 1 {
		t.Fatalf("profiles = %d, want 1", len(profiles.byUser))
	}
	again, _ := svc.Get(context.Background(), actor)
	if again.ID != got.ID || len(profiles.byUser) != 1 {
		t.Error("second Get must reuse the stored profile")
	}
}

func TestUpdate_RoleSpecificFields(t *testing.T) {
	tests := []struct {
		name               string
		actor              *access.Actor
		wantAddress        string
		wantSpecialization string
	}{
		{"patient keeps address", &access.Actor{UserID: 1, Role: access.RolePatient}, "12 MG Road", ""},
		{"doctor keeps specialization", &access.Actor{UserID: 2, Role: access.RoleDoctor}, "", "Obstetrics"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()
			got, err := svc.Update(context.Background(), tt.actor, ProfileInput{
				Address:        strPtr("12 MG Road"),
				Specialization: strPtr("Obstetrics"),
				DateOfBirth:    strPtr("1995-03-22"),
			})
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if got.Address != tt.wantAddress || got.Specialization != tt.wantSpecialization {
				t.Errorf("address=%q specialization=%q", got.Address, got.Specialization)
			}
			if got.Age == nil || *got.Age != 29 {
				t.Errorf("age = %v, want 29 (birthday tomorrow)", got.Age)
			}
		})
	}
}

func TestUpdate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	actor := &access.Actor{UserID: 1, Role: access.RolePatient}
	for _, in := range []ProfileInput{
		{DateOfBirth: strPtr("21-03-1995")},
		{DateOfBirth: strPtr("2030-01-01")},
	} {
		_, err := svc.Update(context.Background(), actor, in)
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("Update(%+v) = %v, want validation", in, err)
		}
	}
}

func TestUpdate_NameGoesToUser(t *testing.T) {
	svc, _, users := newTestService()
	actor := &access.Actor{UserID: 1, Role: access.RolePatient}
	if _, err := svc.Update(context.Background(), actor, ProfileInput{LastName: strPtr("Kulkarni")}); err != nil {
		t.Fatal(err)
	}
	if users[1].LastName != "Kulkarni" {
		t.Errorf("last name = %q", users[1].LastName)
	}
}

func TestUploadImage(t *testing.T) {
	svc, _, _ := newTestService()
	actor := &access.Actor{UserID: 1, Role: access.RolePatient}
	_, err := svc.UploadImage(context.Background(), actor, "me.gif", strings.NewReader("x"), "image/gif")
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("gif upload = %v, want validation", err)
	}
	got, err := svc.UploadImage(context.Background(), actor, "me.PNG", strings.NewReader("x"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got.ImageURL, "http://files/profile_images/") {
		t.Errorf("image url = %q", got.ImageURL)
	}
}
