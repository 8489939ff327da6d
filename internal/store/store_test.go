package store

import (
	"context"
	"testing"

	"spotfix-widget-service/models"
)

func TestLoadSettingsDefaults(t *testing.T) {
	st := NewMemoryStore()

	settings, err := st.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if settings.Visibility != models.VisibilityEveryone {
		t.Errorf("default visibility: got %q", settings.Visibility)
	}
	if settings.Status != models.StatusOffline {
		t.Errorf("default status: got %q", settings.Status)
	}
	if settings.Code != "" {
		t.Errorf("default code should be empty, got %q", settings.Code)
	}
}

func TestSaveAndLoadSettings(t *testing.T) {
	st := NewMemoryStore()
	want := models.WidgetSettings{
		Code:       "(function(){})();",
		Visibility: models.VisibilityLoggedIn,
		Status:     models.StatusOnline,
	}

	if err := st.SaveSettings(context.Background(), want); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := st.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestUpdateProvisioningMergesFields(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	st.UpdateProvisioning(ctx, map[string]string{
		FieldUserToken: "ut_1",
		FieldEmail:     "a@example.com",
	})
	st.UpdateProvisioning(ctx, map[string]string{
		FieldSessionID: "sess_1",
	})

	state, err := st.LoadProvisioning(ctx)
	if err != nil {
		t.Fatalf("LoadProvisioning: %v", err)
	}
	if state.UserToken != "ut_1" {
		t.Errorf("earlier field lost on merge: %+v", state)
	}
	if state.SessionID != "sess_1" {
		t.Errorf("later field not applied: %+v", state)
	}
	if state.Email != "a@example.com" {
		t.Errorf("email lost: %+v", state)
	}
}

func TestUpdateProvisioningIgnoresUnknownFields(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	st.UpdateProvisioning(ctx, map[string]string{
		"not_a_field":  "x",
		FieldAccountID: "42",
	})

	state, _ := st.LoadProvisioning(ctx)
	if state.AccountID != "42" {
		t.Errorf("known field dropped: %+v", state)
	}
}

func TestResetProvisioning(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	st.UpdateProvisioning(ctx, map[string]string{
		FieldUserToken:    "ut_1",
		FieldProjectToken: "pt_1",
	})
	if err := st.ResetProvisioning(ctx); err != nil {
		t.Fatalf("ResetProvisioning: %v", err)
	}

	state, _ := st.LoadProvisioning(ctx)
	if state != (models.ProvisioningState{}) {
		t.Errorf("state not cleared: %+v", state)
	}
}
