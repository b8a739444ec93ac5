package tasks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ntodo/ntodo/internal/notion"
)

// fakeNotion is an in-memory stand-in for the Notion API, serving the
// handful of endpoints the service touches and counting calls.
type fakeNotion struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	schemaFetches int
	queryPages    []notion.Page
	deleted       []string
	failDeletes   map[string]bool
	createdPage   *notion.Page
	patchedUID    string
	patchedProps  map[string]notion.Property
}

func newFakeNotion(t *testing.T) *fakeNotion {
	t.Helper()

	f := &fakeNotion{t: t, failDeletes: make(map[string]bool)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases/{id}/query", f.handleQuery)
	mux.HandleFunc("GET /databases/{id}", f.handleSchema)
	mux.HandleFunc("POST /pages", f.handleCreate)
	mux.HandleFunc("PATCH /pages/{id}", f.handleUpdate)
	mux.HandleFunc("DELETE /blocks/{id}", f.handleDelete)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeNotion) handleQuery(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	pages := f.queryPages
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(notion.QueryResponse{Results: pages})
}

func (f *fakeNotion) handleSchema(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	f.schemaFetches++
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(notion.Database{
		ID: "db-1",
		Properties: map[string]notion.SchemaProperty{
			"Name":     {ID: "title", Name: "Name", Type: "title"},
			"Status":   {ID: "stat", Name: "Status", Type: "status"},
			"Due":      {ID: "due", Name: "Due", Type: "date"},
			"Notes":    {ID: "desc", Name: "Notes", Type: "rich_text"},
			"Priority": {ID: "pri", Name: "Priority", Type: "select"},
		},
	})
}

func (f *fakeNotion) handleCreate(w http.ResponseWriter, r *http.Request) {
	var page notion.Page
	if err := json.NewDecoder(r.Body).Decode(&page); err != nil {
		f.t.Errorf("decode create body: %v", err)
	}

	f.mu.Lock()
	f.createdPage = &page
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(notion.Page{ID: "new-page"})
}

func (f *fakeNotion) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Properties map[string]notion.Property `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		f.t.Errorf("decode update body: %v", err)
	}

	f.mu.Lock()
	f.patchedUID = r.PathValue("id")
	f.patchedProps = body.Properties
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(notion.Page{ID: r.PathValue("id")})
}

func (f *fakeNotion) handleDelete(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("id")

	f.mu.Lock()
	f.deleted = append(f.deleted, uid)
	fail := f.failDeletes[uid]
	f.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"object":"error","status":500,"code":"internal_server_error","message":"boom"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(notion.Page{ID: uid})
}

func (f *fakeNotion) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func newTestService(t *testing.T, fake *fakeNotion) *Service {
	t.Helper()

	client := notion.NewClient("test-token", notion.WithBaseURL(fake.server.URL))
	cfg := &Config{
		Token:         "test-token",
		DatabaseID:    "db-1",
		TitleID:       "title",
		StatusID:      "stat",
		DueID:         "due",
		DescriptionID: "desc",
	}
	return NewService(client, cfg)
}

// taskPage builds a query-result page with the fixture schema's property
// ids under freely renameable display names.
func taskPage(id, summary, notionStatus string) notion.Page {
	return notion.Page{
		ID: id,
		Properties: map[string]notion.Property{
			"Task": {ID: "title", Type: "title", Title: notion.TextSpan(summary)},
			"Etat": {ID: "stat", Type: "status", Status: &notion.SelectOption{Name: notionStatus}},
		},
	}
}
