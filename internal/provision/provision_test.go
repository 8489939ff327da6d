package provision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"spotfix-widget-service/internal/fault"
	"spotfix-widget-service/internal/remote"
	"spotfix-widget-service/internal/store"
)

func newOrchestrator(t *testing.T, st store.Store, cleanTalkURL, doBoardURL string) *Orchestrator {
	t.Helper()
	return NewOrchestrator(remote.NewClient(5*time.Second), st, Options{
		CleanTalkURL: cleanTalkURL,
		DoBoardURL:   doBoardURL,
		BundleURL:    "https://spotfix.doboard.com/doboard-widget-bundle.min.js",
		AdminEmail:   "admin@example.com",
		SiteName:     "Example Site",
		ProjectName:  "spotfix-content-review",
	})
}

func TestCreateAccountFullFlow(t *testing.T) {
	cleanTalk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("method_name") != "get_api_key" {
			t.Errorf("wrong method_name: %q", r.PostForm.Get("method_name"))
		}
		if r.PostForm.Get("email") != "admin@example.com" {
			t.Errorf("wrong email: %q", r.PostForm.Get("email"))
		}
		w.Write([]byte(`{"data": {"user_token": "ut_123"}}`))
	}))
	defer cleanTalk.Close()

	doBoard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user_authorize" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		r.ParseForm()
		if r.PostForm.Get("user_token") != "ut_123" {
			t.Errorf("wrong user_token: %q", r.PostForm.Get("user_token"))
		}
		// Numeric ids, the way the live API answers.
		w.Write([]byte(`{"data": {"session_id": "sess_9", "user_id": 501, "accounts": [{"account_id": 42}]}}`))
	}))
	defer doBoard.Close()

	st := store.NewMemoryStore()
	// Leftovers from an earlier attempt must be wiped.
	st.UpdateProvisioning(context.Background(), map[string]string{
		store.FieldProjectToken: "stale",
	})

	o := newOrchestrator(t, st, cleanTalk.URL, doBoard.URL+"/")
	result, err := o.CreateAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if result.UserToken != "ut_123" || result.SessionID != "sess_9" ||
		result.UserID != "501" || result.AccountID != "42" {
		t.Errorf("wrong result: %+v", result)
	}
	if !strings.Contains(result.Message, "admin@example.com") {
		t.Errorf("message does not name the email: %q", result.Message)
	}

	state, _ := st.LoadProvisioning(context.Background())
	if state.UserToken != "ut_123" || state.SessionID != "sess_9" || state.AccountID != "42" {
		t.Errorf("state not persisted: %+v", state)
	}
	if state.ProjectToken != "" {
		t.Errorf("stale state survived reset: %+v", state)
	}
	if state.AttemptID == "" || state.CreatedAt == "" {
		t.Errorf("attempt metadata missing: %+v", state)
	}
}

func TestCreateAccountMissingAdminEmail(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	o := NewOrchestrator(remote.NewClient(5*time.Second), store.NewMemoryStore(), Options{
		CleanTalkURL: srv.URL,
		DoBoardURL:   srv.URL + "/",
	})

	_, err := o.CreateAccount(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("expected validation fault, got kind %q", fault.KindOf(err))
	}
	if err.Error() != "Admin email is not configured." {
		t.Errorf("wrong message: %q", err.Error())
	}
	if calls.Load() != 0 {
		t.Errorf("expected no outbound calls, got %d", calls.Load())
	}
}

func TestCreateAccountAuthorizeFailureIsNonFatal(t *testing.T) {
	cleanTalk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"user_token": "ut_456"}}`))
	}))
	defer cleanTalk.Close()

	doBoard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "email not confirmed"}`))
	}))
	defer doBoard.Close()

	st := store.NewMemoryStore()
	o := newOrchestrator(t, st, cleanTalk.URL, doBoard.URL+"/")

	result, err := o.CreateAccount(context.Background())
	if err != nil {
		t.Fatalf("CreateAccount should survive authorize failure: %v", err)
	}
	if result.UserToken != "ut_456" {
		t.Errorf("wrong token: %q", result.UserToken)
	}
	if result.SessionID != "" || result.AccountID != "" {
		t.Errorf("expected empty session data: %+v", result)
	}

	state, _ := st.LoadProvisioning(context.Background())
	if state.UserToken != "ut_456" {
		t.Errorf("token not persisted: %+v", state)
	}
}

func TestCreateAccountRegistrationError(t *testing.T) {
	cleanTalk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "email rejected"}`))
	}))
	defer cleanTalk.Close()

	o := newOrchestrator(t, store.NewMemoryStore(), cleanTalk.URL, cleanTalk.URL+"/")
	_, err := o.CreateAccount(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	want := "Failed to connect to registration service: email rejected"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestConfigureAccountMissingState(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	o := newOrchestrator(t, store.NewMemoryStore(), srv.URL, srv.URL+"/")
	_, err := o.ConfigureAccount(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("expected validation fault, got kind %q", fault.KindOf(err))
	}
	if err.Error() != "Account ID or session ID is missing. Please create account first." {
		t.Errorf("wrong message: %q", err.Error())
	}
	if calls.Load() != 0 {
		t.Errorf("expected no outbound calls, got %d", calls.Load())
	}
}

func TestConfigureAccountFullFlow(t *testing.T) {
	doBoard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.URL.Path {
		case "/account_add":
			if r.PostForm.Get("org_name") != "Example Site" {
				t.Errorf("wrong org_name: %q", r.PostForm.Get("org_name"))
			}
			w.Write([]byte(`{"data": {"accounts": [{"account_id": 77}]}}`))
		case "/77/project_add":
			if r.PostForm.Get("project_type") != "PUBLIC" {
				t.Errorf("wrong project_type: %q", r.PostForm.Get("project_type"))
			}
			w.Write([]byte(`{"data": {"project_id": 301}}`))
		case "/77/project_get":
			if r.PostForm.Get("name") != "spotfix-content-review" {
				t.Errorf("wrong project name: %q", r.PostForm.Get("name"))
			}
			w.Write([]byte(`{"data": {"projects": [{"project_token": "pt_abc"}]}}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer doBoard.Close()

	st := store.NewMemoryStore()
	st.UpdateProvisioning(context.Background(), map[string]string{
		store.FieldAccountID: "42",
		store.FieldSessionID: "sess_9",
	})

	o := newOrchestrator(t, st, doBoard.URL, doBoard.URL+"/")
	result, err := o.ConfigureAccount(context.Background())
	if err != nil {
		t.Fatalf("ConfigureAccount: %v", err)
	}

	if result.AccountID != "77" || result.ProjectID != "301" || result.ProjectToken != "pt_abc" {
		t.Errorf("wrong result: %+v", result)
	}
	if result.Message != "Account configured successfully!" {
		t.Errorf("wrong message: %q", result.Message)
	}
	if !strings.Contains(result.Code, "projectToken=pt_abc&projectId=301&accountId=77") {
		t.Errorf("snippet missing parameters:\n%s", result.Code)
	}

	state, _ := st.LoadProvisioning(context.Background())
	if state.AccountID != "77" || state.ProjectID != "301" || state.ProjectToken != "pt_abc" {
		t.Errorf("state not persisted: %+v", state)
	}

	settings, _ := st.LoadSettings(context.Background())
	if settings.Code != result.Code {
		t.Errorf("snippet not saved to settings")
	}
}

func TestConfigureAccountRemoteError(t *testing.T) {
	doBoard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "session expired"}`))
	}))
	defer doBoard.Close()

	st := store.NewMemoryStore()
	st.UpdateProvisioning(context.Background(), map[string]string{
		store.FieldAccountID: "42",
		store.FieldSessionID: "sess_9",
	})

	o := newOrchestrator(t, st, doBoard.URL, doBoard.URL+"/")
	_, err := o.ConfigureAccount(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	want := "Failed to add account: session expired"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
