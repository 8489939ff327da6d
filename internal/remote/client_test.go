package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spotfix-widget-service/internal/fault"
)

func TestPostFormDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("method_name"); got != "get_api_key" {
			t.Errorf("missing form field, got method_name=%q", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("wrong content type: %q", ct)
		}
		w.Write([]byte(`{"data": {"user_token": "tok123"}}`))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	data, err := client.PostForm(context.Background(), srv.URL, map[string]string{
		"method_name": "get_api_key",
	})
	if err != nil {
		t.Fatalf("PostForm: %v", err)
	}

	inner, ok := data["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing data object: %v", data)
	}
	if inner["user_token"] != "tok123" {
		t.Errorf("wrong token: %v", inner["user_token"])
	}
}

func TestPostFormErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "Account limit reached"}`))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, err := client.PostForm(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !fault.IsKind(err, fault.KindApplication) {
		t.Errorf("expected application fault, got kind %q", fault.KindOf(err))
	}
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Message != "Account limit reached" {
		t.Errorf("remote message not preserved: %v", err)
	}
}

func TestPostFormErrorObjectField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": {"message": "bad token", "code": 7}}`))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, err := client.PostForm(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Message != "bad token" {
		t.Errorf("nested message not extracted: %v", err)
	}
}

func TestPostFormNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, err := client.PostForm(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Message != "Invalid response from API." {
		t.Errorf("wrong message: %v", err)
	}
}

func TestPostFormHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	_, err := client.PostForm(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Message != "API returned status 502" {
		t.Errorf("wrong message: %v", err)
	}
}

func TestPostFormTransportFault(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(2 * time.Second)
	_, err := client.PostForm(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !fault.IsKind(err, fault.KindTransport) {
		t.Errorf("expected transport fault, got kind %q", fault.KindOf(err))
	}
}

func TestGetReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.Get(context.Background(), srv.URL, GetOptions{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status: got %d", resp.StatusCode)
	}
	if resp.Body != "short and stout" {
		t.Errorf("body: got %q", resp.Body)
	}
}

func TestGetSendsBrowserHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != DesktopUserAgent {
			t.Errorf("wrong UA: %q", ua)
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Error("missing Accept-Language")
		}
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	if _, err := client.Get(context.Background(), srv.URL, GetOptions{
		Timeout:   2 * time.Second,
		UserAgent: DesktopUserAgent,
	}); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestGetCapsRedirects(t *testing.T) {
	var hops int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	defer srv.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.Get(context.Background(), srv.URL, GetOptions{
		Timeout:      2 * time.Second,
		MaxRedirects: 3,
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected last redirect response, got %d", resp.StatusCode)
	}
	if hops > 5 {
		t.Errorf("redirects not capped: %d hops", hops)
	}
}
