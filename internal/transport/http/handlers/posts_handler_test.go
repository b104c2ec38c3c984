package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smpg2030-sys/trailmindrise/internal/domain/enums"
	"github.com/smpg2030-sys/trailmindrise/internal/domain/model"
	pgrepo "github.com/smpg2030-sys/trailmindrise/internal/repo/postgres"
	authsvc "github.com/smpg2030-sys/trailmindrise/internal/services/auth"
	modsvc "github.com/smpg2030-sys/trailmindrise/internal/services/moderation"
	postssvc "github.com/smpg2030-sys/trailmindrise/internal/services/posts"
)

type postsStoreStub struct {
	pending   map[string]model.Post
	published map[string]model.Post
}

func newPostsStoreStub() *postsStoreStub {
	return &postsStoreStub{
		pending:   make(map[string]model.Post),
		published: make(map[string]model.Post),
	}
}

func (s *postsStoreStub) InsertPending(_ context.Context, p model.Post) error {
	s.pending[p.ID] = p
	return nil
}

func (s *postsStoreStub) GetPending(_ context.Context, id string) (model.Post, error) {
	p, ok := s.pending[id]
	if !ok {
		return model.Post{}, pgrepo.ErrPostNotFound
	}
	return p, nil
}

func (s *postsStoreStub) GetFromAny(_ context.Context, id string) (model.Post, bool, error) {
	if p, ok := s.pending[id]; ok {
		return p, false, nil
	}
	if p, ok := s.published[id]; ok {
		return p, true, nil
	}
	return model.Post{}, false, pgrepo.ErrPostNotFound
}

func (s *postsStoreStub) UpdatePendingModeration(_ context.Context, p model.Post) error {
	s.pending[p.ID] = p
	return nil
}

func (s *postsStoreStub) UpdatePublishedModeration(_ context.Context, p model.Post) error {
	s.published[p.ID] = p
	return nil
}

func (s *postsStoreStub) PromoteToPublished(_ context.Context, p model.Post) error {
	delete(s.pending, p.ID)
	s.published[p.ID] = p
	return nil
}

func (s *postsStoreStub) DemoteToPending(_ context.Context, p model.Post) error {
	delete(s.published, p.ID)
	s.pending[p.ID] = p
	return nil
}

func (s *postsStoreStub) DeleteOwned(_ context.Context, id, authorID string) (bool, error) {
	deleted := false
	if p, ok := s.pending[id]; ok && p.AuthorID == authorID {
		delete(s.pending, id)
		deleted = true
	}
	if p, ok := s.published[id]; ok && p.AuthorID == authorID {
		delete(s.published, id)
		deleted = true
	}
	return deleted, nil
}

func (s *postsStoreStub) DeleteByID(_ context.Context, id string) (bool, error) {
	deleted := false
	if _, ok := s.pending[id]; ok {
		delete(s.pending, id)
		deleted = true
	}
	if _, ok := s.published[id]; ok {
		delete(s.published, id)
		deleted = true
	}
	return deleted, nil
}

func (s *postsStoreStub) ListByAuthor(_ context.Context, authorID string) ([]model.Post, error) {
	var posts []model.Post
	for _, p := range s.published {
		if p.AuthorID == authorID {
			posts = append(posts, p)
		}
	}
	for _, p := range s.pending {
		if p.AuthorID == authorID && p.Status != enums.ModerationStatusRejected {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (s *postsStoreStub) Counts(_ context.Context) (pgrepo.PostCounts, error) {
	return pgrepo.PostCounts{Pending: len(s.pending), Published: len(s.published)}, nil
}

type approveAllModerator struct{}

func (approveAllModerator) Evaluate(_ context.Context, _ modsvc.Input) modsvc.Verdict {
	return modsvc.Approved("safe")
}

func newPostsTestRouter(t *testing.T, store *postsStoreStub) chi.Router {
	t.Helper()

	svc, err := postssvc.NewService(store, approveAllModerator{}, nil, postssvc.Config{RecheckDelay: time.Minute}, nil)
	if err != nil {
		t.Fatalf("new posts service: %v", err)
	}

	postsHandler := NewPostsHandler(svc)
	adminHandler := NewAdminHandler(svc)

	r := chi.NewRouter()
	r.Post("/posts", postsHandler.Create)
	r.Get("/posts/my", postsHandler.ListMine)
	r.Get("/posts/{postID}/status", postsHandler.Status)
	r.Delete("/posts/{postID}", postsHandler.Delete)
	r.Post("/admin/posts/{postID}/override", adminHandler.Override)
	r.Get("/admin/stats", adminHandler.Stats)
	return r
}

func asUser(req *http.Request, userID string, role enums.Role) *http.Request {
	ctx := authsvc.WithIdentity(req.Context(), authsvc.Identity{UserID: userID, Role: role})
	return req.WithContext(ctx)
}

func TestCreatePostReturnsCreated(t *testing.T) {
	store := newPostsStoreStub()
	router := newPostsTestRouter(t, store)

	body, _ := json.Marshal(map[string]string{"body": "hello from the retreat"})
	req := asUser(httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader(body)), "u1", enums.RoleUser)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d want %d, body %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" || resp.Status != "approved" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestCreatePostRequiresIdentity(t *testing.T) {
	router := newPostsTestRouter(t, newPostsStoreStub())

	req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader([]byte(`{"body":"hi"}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestPostStatusHiddenFromOtherUsers(t *testing.T) {
	store := newPostsStoreStub()
	store.pending["p1"] = model.Post{ID: "p1", AuthorID: "u1", Status: enums.ModerationStatusFlagged}
	router := newPostsTestRouter(t, store)

	req := asUser(httptest.NewRequest(http.MethodGet, "/posts/p1/status", nil), "u2", enums.RoleUser)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNotFound)
	}
}

func TestDeletePostReturnsNoContent(t *testing.T) {
	store := newPostsStoreStub()
	store.published["p1"] = model.Post{ID: "p1", AuthorID: "u1", Status: enums.ModerationStatusApproved}
	router := newPostsTestRouter(t, store)

	req := asUser(httptest.NewRequest(http.MethodDelete, "/posts/p1", nil), "u1", enums.RoleUser)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
	if len(store.published) != 0 {
		t.Fatalf("post must be deleted")
	}
}

func TestAdminOverrideForbiddenForRegularUsers(t *testing.T) {
	store := newPostsStoreStub()
	store.pending["p1"] = model.Post{ID: "p1", AuthorID: "u1", Status: enums.ModerationStatusFlagged}
	router := newPostsTestRouter(t, store)

	body := []byte(`{"decision":"approved","reason":"fine"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/admin/posts/p1/override", bytes.NewReader(body)), "u2", enums.RoleUser)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
}

func TestAdminOverrideApprovesFlaggedPost(t *testing.T) {
	store := newPostsStoreStub()
	store.pending["p1"] = model.Post{ID: "p1", AuthorID: "u1", Status: enums.ModerationStatusFlagged}
	router := newPostsTestRouter(t, store)

	body := []byte(`{"decision":"approved","reason":"reviewed"}`)
	req := asUser(httptest.NewRequest(http.MethodPost, "/admin/posts/p1/override", bytes.NewReader(body)), "admin-1", enums.RoleAdmin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if _, ok := store.published["p1"]; !ok {
		t.Fatalf("approved override must publish the post")
	}

	var resp struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Source != "admin_override" {
		t.Fatalf("unexpected source: %s", resp.Source)
	}
}

func TestAdminStatsRequiresAdmin(t *testing.T) {
	router := newPostsTestRouter(t, newPostsStoreStub())

	req := asUser(httptest.NewRequest(http.MethodGet, "/admin/stats", nil), "u1", enums.RoleUser)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
}
