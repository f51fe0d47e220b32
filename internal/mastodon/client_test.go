package mastodon_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/threadpost/internal/fakeinstance"
	"github.com/dgallion1/threadpost/internal/mastodon"
)

func newClient(t *testing.T) (*mastodon.Client, *fakeinstance.Server) {
	t.Helper()
	inst := fakeinstance.New("token", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(inst)
	t.Cleanup(ts.Close)

	c := mastodon.NewClient(mastodon.Credentials{
		BaseURL:     ts.URL + "/",
		ClientID:    "app",
		AccessToken: "token",
	}, mastodon.WithTimeout(5*time.Second))
	t.Cleanup(c.Close)
	return c, inst
}

func TestPostStatus_ReplyChain(t *testing.T) {
	c, inst := newClient(t)
	ctx := context.Background()

	root, err := c.PostStatus(ctx, mastodon.StatusRequest{
		Status:      "root (1/2)",
		Visibility:  "public",
		Language:    "en",
		SpoilerText: "cw",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.ID == "" || root.URI == "" {
		t.Fatalf("expected id and uri, got %+v", root)
	}

	reply, err := c.PostStatus(ctx, mastodon.StatusRequest{
		Status:      "reply (2/2)",
		InReplyToID: root.ID,
		Visibility:  "unlisted",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.InReplyToID != root.ID {
		t.Errorf("expected reply to %s, got %q", root.ID, reply.InReplyToID)
	}
	if reply.Visibility != "unlisted" {
		t.Errorf("expected unlisted, got %q", reply.Visibility)
	}
	if len(inst.Statuses()) != 2 {
		t.Errorf("expected 2 statuses on the instance, got %d", len(inst.Statuses()))
	}
}

func TestPostStatus_APIError(t *testing.T) {
	c, inst := newClient(t)
	inst.FailPostAt(1)

	_, err := c.PostStatus(context.Background(), mastodon.StatusRequest{Status: "x"})
	var apiErr *mastodon.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *mastodon.APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Validation failed: injected failure" {
		t.Errorf("expected platform message, got %q", apiErr.Message)
	}
}

func TestPostStatus_Unauthorized(t *testing.T) {
	inst := fakeinstance.New("token", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(inst)
	defer ts.Close()

	c := mastodon.NewClient(mastodon.Credentials{BaseURL: ts.URL, AccessToken: "wrong"})
	_, err := c.PostStatus(context.Background(), mastodon.StatusRequest{Status: "x"})
	var apiErr *mastodon.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestPostStatus_RequestShape(t *testing.T) {
	var gotKey, gotAuth string
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"id":"7","uri":"https://x/7","in_reply_to_id":null}`))
	}))
	defer ts.Close()

	c := mastodon.NewClient(mastodon.Credentials{BaseURL: ts.URL, AccessToken: "tok"})
	st, err := c.PostStatus(context.Background(), mastodon.StatusRequest{
		Status:      "text",
		Visibility:  "public",
		Language:    "en",
		ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ID != "7" || st.InReplyToID != "" {
		t.Errorf("unexpected status %+v", st)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotKey == "" {
		t.Error("expected an Idempotency-Key header")
	}
	if _, ok := body["in_reply_to_id"]; ok {
		t.Error("expected in_reply_to_id omitted for a root post")
	}
	if _, ok := body["spoiler_text"]; ok {
		t.Error("expected spoiler_text omitted when empty")
	}
	if body["content_type"] != "text/plain" {
		t.Errorf("expected content_type text/plain, got %v", body["content_type"])
	}
}

func TestPostStatus_MissingID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := mastodon.NewClient(mastodon.Credentials{BaseURL: ts.URL, AccessToken: "tok"})
	if _, err := c.PostStatus(context.Background(), mastodon.StatusRequest{Status: "x"}); err == nil {
		t.Fatal("expected error for a response without an id")
	}
}

func TestGetAndDeleteStatus(t *testing.T) {
	c, inst := newClient(t)
	ctx := context.Background()

	st, err := c.PostStatus(ctx, mastodon.StatusRequest{Status: "to delete"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := c.GetStatus(ctx, st.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != st.ID {
		t.Fatalf("expected status %s, got %+v", st.ID, got)
	}

	if err := c.DeleteStatus(ctx, st.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = c.GetStatus(ctx, st.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
	if len(inst.Deleted()) != 1 {
		t.Errorf("expected one deletion, got %v", inst.Deleted())
	}

	err = c.DeleteStatus(ctx, st.ID)
	var apiErr *mastodon.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 deleting twice, got %v", err)
	}
}

func TestClientID(t *testing.T) {
	c := mastodon.NewClient(mastodon.Credentials{ClientID: "app-key"})
	if c.ClientID() != "app-key" {
		t.Errorf("expected %q, got %q", "app-key", c.ClientID())
	}
}

func TestWithTimeout_LeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{}
	for _, opts := range [][]mastodon.Option{
		{mastodon.WithHTTPClient(shared), mastodon.WithTimeout(time.Second)},
		{mastodon.WithTimeout(time.Second), mastodon.WithHTTPClient(shared)},
	} {
		mastodon.NewClient(mastodon.Credentials{BaseURL: "http://localhost"}, opts...)
		if shared.Timeout != 0 {
			t.Fatalf("expected shared client timeout untouched, got %v", shared.Timeout)
		}
	}
}

func TestWithTimeout_AppliesToRequests(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	c := mastodon.NewClient(mastodon.Credentials{BaseURL: ts.URL, AccessToken: "tok"},
		mastodon.WithHTTPClient(&http.Client{}), mastodon.WithTimeout(50*time.Millisecond))
	if _, err := c.PostStatus(context.Background(), mastodon.StatusRequest{Status: "x"}); err == nil {
		t.Fatal("expected the request to time out")
	}
}
