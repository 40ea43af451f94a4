package dietplan

import (
	"context"
	"testing"

	"github.com/sharath018/health-management-backend/internal/testdb"
	"github.com/sharath018/health-management-backend/utils"
)

func strPtr(s string) *string { return &s }

func TestRepositoryUpsertStatus(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t, &DietPlanStatus{})
	repo := NewRepository(db)
	day := mustDate(t, "2025-03-21")

	steps := []struct {
		name      string
		status    Status
		audio     *string
		keepAudio bool
		wantAudio *string
	}{
		{"first skip with audio", StatusSkipped, strPtr("/uploads/a.m4a"), false, strPtr("/uploads/a.m4a")},
		{"skip again without audio keeps it", StatusSkipped, nil, true, strPtr("/uploads/a.m4a")},
		{"completed clears audio", StatusCompleted, nil, false, nil},
	}
	for _, step := range steps {
		st := &DietPlanStatus{PatientID: 7, DietPlanMealID: 3, Date: day, Status: step.status, ReasonAudioURL: step.audio}
		if err := repo.UpsertStatus(ctx, st, step.keepAudio); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		got, err := repo.GetStatus(ctx, 7, 3, day)
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got.Status != step.status {
			t.Errorf("%s: status = %s, want %s", step.name, got.Status, step.status)
		}
		if (got.ReasonAudioURL == nil) != (step.wantAudio == nil) ||
			(got.ReasonAudioURL != nil && *got.ReasonAudioURL != *step.wantAudio) {
			t.Errorf("%s: audio = %v, want %v", step.name, got.ReasonAudioURL, step.wantAudio)
		}
	}

	var count int64
	if err := db.Model(&DietPlanStatus{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1 after resubmission", count)
	}

	next := &DietPlanStatus{PatientID: 7, DietPlanMealID: 3, Date: mustDate(t, "2025-03-22"), Status: StatusCompleted}
	if err := repo.UpsertStatus(ctx, next, false); err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&DietPlanStatus{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("rows = %d, want 2 for a second date", count)
	}
}

func TestRepositoryStatusUniqueIndex(t *testing.T) {
	ctx := context.Background()
	db := testdb.Open(t, &DietPlanStatus{})
	day := mustDate(t, "2025-03-21")

	if err := db.WithContext(ctx).Create(&DietPlanStatus{PatientID: 7, DietPlanMealID: 3, Date: day, Status: StatusPending}).Error; err != nil {
		t.Fatal(err)
	}
	err := db.WithContext(ctx).Create(&DietPlanStatus{PatientID: 7, DietPlanMealID: 3, Date: day, Status: StatusSkipped}).Error
	if err == nil {
		t.Fatal("plain insert of a duplicate (patient, meal, date) should violate the unique index")
	}
}

func mustDate(t *testing.T, s string) utils.Date {
	t.Helper()
	d, err := utils.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
