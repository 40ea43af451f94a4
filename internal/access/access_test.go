package access

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sharath018/health-management-backend/internal/apperr"
)

func mustGroup(t *testing.T, name string, caps ...string) Group {
	t.Helper()
	g, err := ParseGroup(name, caps)
	if err != nil {
		t.Fatalf("ParseGroup(%q): %v", name, err)
	}
	return g
}

func TestVerbForMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
		ok     bool
	}{
		{http.MethodGet, "", false},
		{http.MethodHead, "", false},
		{http.MethodPost, "add", true},
		{http.MethodPut, "change", true},
		{http.MethodPatch, "update", true},
		{http.MethodDelete, "delete", true},
		{"patch", "update", true},
	}
	for _, tt := range tests {
		v, ok := VerbForMethod(tt.method)
		if ok != tt.ok || v.Prefix() != tt.want {
			t.Errorf("VerbForMethod(%q) = (%q, %v), want (%q, %v)", tt.method, v.Prefix(), ok, tt.want, tt.ok)
		}
	}
}

func TestParseCapability(t *testing.T) {
	tests := []struct {
		in      string
		want    Capability
		wantErr bool
	}{
		{"add_dietplan", Capability{VerbCreate, ResourceDietPlan}, false},
		{"change_labreport", Capability{VerbUpdate, ResourceLabReport}, false},
		{"update_question", Capability{VerbPartialUpdate, ResourceQuestion}, false},
		{"delete_exercise", Capability{VerbDelete, ResourceExercise}, false},
		{"view_dietplan", Capability{}, true},
		{"add_dietplans", Capability{}, true},
		{"adddietplan", Capability{}, true},
	}
	for _, tt := range tests {
		got, err := ParseCapability(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCapability(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseCapability(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if !tt.wantErr && got.String() != tt.in {
			t.Errorf("ParseCapability(%q).String() = %q", tt.in, got.String())
		}
	}
}

func TestAuthorize(t *testing.T) {
	doctor := &Actor{UserID: 2, Role: RoleDoctor, Groups: []Group{
		mustGroup(t, "doctor", "add_dietplan", "change_dietplan"),
	}}
	multi := &Actor{UserID: 3, Role: RolePatient, Groups: []Group{
		mustGroup(t, "patient", "add_dietplanstatus"),
		mustGroup(t, "beta", "update_dietplan"),
	}}

	tests := []struct {
		name   string
		actor  *Actor
		method string
		res    Resource
		want   apperr.Kind
		allow  bool
	}{
		{"anonymous read", nil, http.MethodGet, ResourceDietPlan, apperr.KindAuthentication, false},
		{"anonymous write", nil, http.MethodPost, ResourceDietPlan, apperr.KindAuthentication, false},
		{"read needs no capability", doctor, http.MethodGet, ResourceLabReport, 0, true},
		{"post with add", doctor, http.MethodPost, ResourceDietPlan, 0, true},
		{"put with change", doctor, http.MethodPut, ResourceDietPlan, 0, true},
		{"patch needs update not change", doctor, http.MethodPatch, ResourceDietPlan, apperr.KindForbidden, false},
		{"delete missing", doctor, http.MethodDelete, ResourceDietPlan, apperr.KindForbidden, false},
		{"any group grants", multi, http.MethodPatch, ResourceDietPlan, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.method, tt.res)
			if tt.allow {
				if err != nil {
					t.Fatalf("Authorize() = %v, want nil", err)
				}
				return
			}
			if apperr.KindOf(err) != tt.want {
				t.Fatalf("Authorize() kind = %v, want %v", apperr.KindOf(err), tt.want)
			}
		})
	}
}

func TestAuthorize_ForbiddenNamesCapability(t *testing.T) {
	actor := &Actor{UserID: 1, Role: RolePatient}
	err := Authorize(actor, http.MethodDelete, ResourceQuestion)
	if err == nil || !strings.Contains(err.Error(), "delete_question") {
		t.Fatalf("Authorize() = %v, want message naming delete_question", err)
	}
}

func TestValidateRegistry(t *testing.T) {
	if err := ValidateRegistry(DefaultGroups(), Resources()); err != nil {
		t.Fatalf("default groups invalid: %v", err)
	}

	bad := map[string][]string{"doctor": {"add_dietplan", "add_dietpaln"}}
	err := ValidateRegistry(bad, []Resource{"labreports"})
	if err == nil {
		t.Fatal("expected error for typo capability and unregistered route resource")
	}
	if !strings.Contains(err.Error(), "add_dietpaln") || !strings.Contains(err.Error(), "labreports") {
		t.Errorf("error %q should name both problems", err)
	}
}

func TestDefaultGroups_SuperadminHoldsEverything(t *testing.T) {
	g := mustGroup(t, "superadmin", DefaultGroups()["superadmin"]...)
	for _, c := range AllCapabilities() {
		if !g.Has(c) {
			t.Errorf("superadmin group missing %s", c)
		}
	}
}

func TestCanCreateAccount(t *testing.T) {
	tests := []struct {
		creator, target Role
		want            bool
	}{
		{RoleSuperAdmin, RoleAdmin, true},
		{RoleAdmin, RoleAdmin, false},
		{RoleAdmin, RoleDoctor, true},
		{RoleSuperAdmin, RoleDoctor, false},
		{RoleDoctor, RoleDoctor, false},
		{RoleSuperAdmin, RolePatient, false},
		{RoleAdmin, RoleSuperAdmin, false},
	}
	for _, tt := range tests {
		if got := CanCreateAccount(tt.creator, tt.target); got != tt.want {
			t.Errorf("CanCreateAccount(%s, %s) = %v, want %v", tt.creator, tt.target, got, tt.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles() {
		if got, err := ParseRole(string(r)); err != nil || got != r {
			t.Errorf("ParseRole(%q) = %q, %v", r, got, err)
		}
	}
	if _, err := ParseRole("nurse"); err == nil {
		t.Error("ParseRole(nurse) should fail")
	}
}

func TestActorContext(t *testing.T) {
	if ActorFrom(context.Background()) != nil {
		t.Fatal("empty context should carry no actor")
	}
	a := &Actor{UserID: 9, Role: RolePatient}
	ctx := WithActor(context.Background(), a)
	if got := ActorFrom(ctx); got != a {
		t.Fatalf("ActorFrom() = %v, want %v", got, a)
	}
}

func TestAuditFields(t *testing.T) {
	created := time.Date(2025, 3, 21, 9, 0, 0, 0, time.UTC)
	var f AuditFields
	f.StampCreate(&Actor{UserID: 4}, created)
	if f.CreatedByID == nil || *f.CreatedByID != 4 || !f.CreatedAt.Equal(created) {
		t.Fatalf("StampCreate() = %+v", f)
	}

	later := created.Add(time.Hour)
	f.StampUpdate(&Actor{UserID: 7}, later)
	if *f.CreatedByID != 4 || *f.UpdatedByID != 7 || !f.UpdatedAt.Equal(later) {
		t.Fatalf("StampUpdate() = %+v", f)
	}

	var anon AuditFields
	anon.StampCreate(nil, created)
	if anon.CreatedByID != nil {
		t.Errorf("anonymous stamp should leave CreatedByID nil")
	}
}

func TestDefaultGroups_PatientAssignment(t *testing.T) {
	groups := DefaultGroups()
	tests := []struct {
		role  Role
		allow bool
	}{
		{RoleDoctor, true},
		{RoleAdmin, true},
		{RolePatient, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			actor := &Actor{UserID: 4, Role: tt.role, Groups: []Group{
				mustGroup(t, string(tt.role), groups[string(tt.role)]...),
			}}
			err := Authorize(actor, http.MethodPatch, ResourcePatient)
			if (err == nil) != tt.allow {
				t.Fatalf("PATCH patient as %s: err = %v, allow = %v", tt.role, err, tt.allow)
			}
		})
	}
}
