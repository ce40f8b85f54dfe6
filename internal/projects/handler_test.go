package projects_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/showcaselabs/showcase-go/internal/identity"
	"github.com/showcaselabs/showcase-go/internal/projects"
	"github.com/showcaselabs/showcase-go/internal/store"
	_ "github.com/showcaselabs/showcase-go/internal/store/memory"
)

// testRouter mounts the handler the way the server does, with a fixed
// principal injected for authenticated routes.
func testRouter(t *testing.T) (http.Handler, store.ProjectStore) {
	t.Helper()

	driver, err := store.New(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := driver.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { driver.Close() })

	projectStore, ok := driver.(store.ProjectStore)
	if !ok {
		t.Fatal("memory driver does not implement ProjectStore")
	}

	h := projects.NewHandler(projectStore)

	asUser := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			principal := &identity.Principal{UserID: "u1", Username: "alice"}
			next(w, r.WithContext(identity.WithPrincipal(r.Context(), principal)))
		}
	}

	r := chi.NewRouter()
	r.Route("/api/v1/projects", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/{projectID}", h.HandleGet)
		r.Put("/{projectID}", h.HandleUpdate)
		r.Delete("/{projectID}", h.HandleDelete)
		r.Get("/{projectID}/comments", h.HandleListComments)
		r.Post("/{projectID}/comments", asUser(h.HandleCreateComment))
	})

	return r, projectStore
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w
}

func createProject(t *testing.T, router http.Handler, title string) store.Project {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/v1/projects",
		`{"title":"`+title+`","description":"d","tags":["go","web"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	var p store.Project
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func TestProjectCRUD(t *testing.T) {
	router, _ := testRouter(t)

	created := createProject(t, router, "My Project")
	if created.ID == "" {
		t.Fatal("expected project id")
	}
	if len(created.Tags) != 2 {
		t.Errorf("expected 2 tags, got %v", created.Tags)
	}

	// Get.
	w := doRequest(t, router, http.MethodGet, "/api/v1/projects/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}

	// Update.
	w = doRequest(t, router, http.MethodPut, "/api/v1/projects/"+created.ID,
		`{"title":"Renamed","description":"new","tags":["go"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var updated store.Project
	if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("expected renamed title, got %q", updated.Title)
	}
	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Error("updated_at must not go backwards")
	}

	// Delete.
	w = doRequest(t, router, http.MethodDelete, "/api/v1/projects/"+created.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	w = doRequest(t, router, http.MethodGet, "/api/v1/projects/"+created.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", w.Code)
	}
}

func TestProjectList_NewestFirst(t *testing.T) {
	router, _ := testRouter(t)

	createProject(t, router, "first")
	second := createProject(t, router, "second")

	w := doRequest(t, router, http.MethodGet, "/api/v1/projects", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Projects []store.Project `json:"projects"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(resp.Projects))
	}
	if resp.Projects[0].ID != second.ID {
		t.Errorf("expected newest project first, got %q", resp.Projects[0].Title)
	}
}

func TestProject_Validation(t *testing.T) {
	router, _ := testRouter(t)

	w := doRequest(t, router, http.MethodPost, "/api/v1/projects", `{"description":"no title"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing title, got %d", w.Code)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/projects/no-such-id", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown project, got %d", w.Code)
	}

	w = doRequest(t, router, http.MethodPut, "/api/v1/projects/no-such-id", `{"title":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 updating unknown project, got %d", w.Code)
	}
}

func TestComments(t *testing.T) {
	router, _ := testRouter(t)
	project := createProject(t, router, "with comments")

	// Empty to start.
	w := doRequest(t, router, http.MethodGet, "/api/v1/projects/"+project.ID+"/comments", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var listResp struct {
		Comments []store.Comment `json:"comments"`
	}
	if err := json.NewDecoder(w.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listResp.Comments) != 0 {
		t.Errorf("expected no comments, got %d", len(listResp.Comments))
	}

	// Create one; the author comes from the principal.
	w = doRequest(t, router, http.MethodPost, "/api/v1/projects/"+project.ID+"/comments", `{"body":"nice work"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var comment store.Comment
	if err := json.NewDecoder(w.Body).Decode(&comment); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if comment.Author != "alice" {
		t.Errorf("expected author alice, got %q", comment.Author)
	}

	w = doRequest(t, router, http.MethodGet, "/api/v1/projects/"+project.ID+"/comments", "")
	if err := json.NewDecoder(w.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listResp.Comments) != 1 {
		t.Errorf("expected 1 comment, got %d", len(listResp.Comments))
	}

	// Comments on an unknown project fail.
	w = doRequest(t, router, http.MethodPost, "/api/v1/projects/no-such-id/comments", `{"body":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	// Empty body rejected.
	w = doRequest(t, router, http.MethodPost, "/api/v1/projects/"+project.ID+"/comments", `{"body":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestDeleteProject_CascadesComments(t *testing.T) {
	router, projectStore := testRouter(t)
	project := createProject(t, router, "doomed")

	doRequest(t, router, http.MethodPost, "/api/v1/projects/"+project.ID+"/comments", `{"body":"bye"}`)
	doRequest(t, router, http.MethodDelete, "/api/v1/projects/"+project.ID, "")

	_, err := projectStore.ListComments(context.Background(), project.ID)
	if err == nil {
		t.Error("expected comments gone with the project")
	}
}
