// Package quiptest runs an in-memory API server for client and export tests.
package quiptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

// Thread is a seeded thread. Pages, when set, are served by the paginated
// HTML endpoint in order; otherwise HTML is served as a single page.
type Thread struct {
	ID          string
	Title       string
	Type        string
	UpdatedUsec int64
	HTML        string
	Pages       []string
}

// Folder is a seeded folder. Children entries are thread or folder ids.
type Folder struct {
	ID          string
	Title       string
	UpdatedUsec int64
	Threads     []string
	Folders     []string
}

// Server is a fake API backed by maps.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	threads  map[string]*Thread
	folders  map[string]*Folder
	users    map[string]map[string]any
	messages map[string][]map[string]any
	current  string
	throttle map[string]int
	limit    int
	remain   int
	reset    time.Time
	nextID   int

	requests atomic.Int64
	posted   []PostedForm
}

// PostedForm records the form body of a POST request.
type PostedForm struct {
	Path string
	Form map[string]string
}

// New starts a server. Callers must Close it.
func New() *Server {
	s := &Server{
		threads:  make(map[string]*Thread),
		folders:  make(map[string]*Folder),
		users:    make(map[string]map[string]any),
		messages: make(map[string][]map[string]any),
		throttle: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.countAndThrottle)
	r.Get("/1/threads/recent", s.recentThreads)
	r.Get("/1/threads/", s.threadsByIDs)
	r.Get("/1/threads/{id}", s.thread)
	r.Get("/2/threads/{id}/html", s.threadHTML)
	r.Post("/1/threads/new-document", s.newDocument)
	r.Post("/1/threads/edit-document", s.editDocument)
	r.Get("/1/folders/", s.foldersByIDs)
	r.Get("/1/folders/{id}", s.folder)
	r.Post("/1/folders/new", s.newFolder)
	r.Get("/1/users/current", s.currentUser)
	r.Get("/1/users/{id}", s.user)
	r.Get("/1/messages/{id}", s.listMessages)
	r.Post("/1/messages/new", s.newMessage)

	s.Server = httptest.NewServer(r)
	return s
}

// AddThread seeds a thread.
func (s *Server) AddThread(thread Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := thread
	s.threads[thread.ID] = &copied
}

// AddFolder seeds a folder.
func (s *Server) AddFolder(folder Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := folder
	s.folders[folder.ID] = &copied
}

// AddUser seeds a user. The first user added becomes the current user.
func (s *Server) AddUser(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = map[string]any{"id": id, "name": name, "emails": []string{strings.ToLower(name) + "@example.com"}}
	if s.current == "" {
		s.current = id
	}
}

// SetRateLimit makes every response carry the given rate limit headers.
func (s *Server) SetRateLimit(limit, remaining int, reset time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	s.remain = remaining
	s.reset = reset
}

// Throttle makes the next n requests whose path has the given prefix fail
// with a 503 over_rate_limit error.
func (s *Server) Throttle(pathPrefix string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.throttle[pathPrefix] = n
}

// Requests returns the number of requests served.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

// Posted returns the recorded POST bodies.
func (s *Server) Posted() []PostedForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PostedForm, len(s.posted))
	copy(out, s.posted)
	return out
}

func (s *Server) countAndThrottle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)

		s.mu.Lock()
		if s.limit > 0 {
			w.Header().Set("X-Ratelimit-Limit", strconv.Itoa(s.limit))
			w.Header().Set("X-Ratelimit-Remaining", strconv.Itoa(s.remain))
			w.Header().Set("X-Ratelimit-Reset", strconv.FormatInt(s.reset.Unix(), 10))
		}
		throttled := false
		for prefix, n := range s.throttle {
			if n > 0 && strings.HasPrefix(r.URL.Path, prefix) {
				s.throttle[prefix] = n - 1
				throttled = true
				break
			}
		}
		if r.Method == http.MethodPost && !throttled {
			_ = r.ParseForm()
			form := make(map[string]string, len(r.PostForm))
			for key := range r.PostForm {
				form[key] = r.PostForm.Get(key)
			}
			s.posted = append(s.posted, PostedForm{Path: r.URL.Path, Form: form})
		}
		s.mu.Unlock()

		if throttled {
			writeError(w, http.StatusServiceUnavailable, "over_rate_limit", "Over Rate Limit")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) thread(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}
	writeJSON(w, threadPayload(thread))
}

func (s *Server) threadsByIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]any{}
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if thread, ok := s.threads[id]; ok {
			out[id] = threadPayload(thread)
		}
	}
	writeJSON(w, out)
}

func (s *Server) recentThreads(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]any{}
	for id, thread := range s.threads {
		out[id] = threadPayload(thread)
	}
	writeJSON(w, out)
}

func (s *Server) threadHTML(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}

	pages := thread.Pages
	if len(pages) == 0 {
		pages = []string{thread.HTML}
	}
	index := 0
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		parsed, err := strconv.Atoi(strings.TrimPrefix(cursor, "c"))
		if err != nil || parsed < 0 || parsed >= len(pages) {
			writeError(w, http.StatusBadRequest, "invalid_cursor", "Invalid cursor")
			return
		}
		index = parsed
	}

	next := ""
	if index+1 < len(pages) {
		next = fmt.Sprintf("c%d", index+1)
	}
	writeJSON(w, map[string]any{
		"html":              pages[index],
		"response_metadata": map[string]any{"next_cursor": next},
	})
}

func (s *Server) newDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := &Thread{
		ID:          s.newID("T"),
		Title:       r.PostForm.Get("title"),
		Type:        r.PostForm.Get("type"),
		HTML:        r.PostForm.Get("content"),
		UpdatedUsec: time.Now().UnixMicro(),
	}
	if thread.Type == "" {
		thread.Type = "document"
	}
	if thread.Title == "" {
		thread.Title = "Untitled"
	}
	s.threads[thread.ID] = thread
	writeJSON(w, threadPayload(thread))
}

func (s *Server) editDocument(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[r.PostForm.Get("thread_id")]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}
	switch r.PostForm.Get("location") {
	case "1":
		thread.HTML = r.PostForm.Get("content") + thread.HTML
	default:
		thread.HTML += r.PostForm.Get("content")
	}
	thread.Pages = nil
	thread.UpdatedUsec = time.Now().UnixMicro()
	writeJSON(w, threadPayload(thread))
}

func (s *Server) folder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder, ok := s.folders[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Folder not found")
		return
	}
	writeJSON(w, folderPayload(folder))
}

func (s *Server) foldersByIDs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]any{}
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if folder, ok := s.folders[id]; ok {
			out[id] = folderPayload(folder)
		}
	}
	writeJSON(w, out)
}

func (s *Server) newFolder(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	folder := &Folder{
		ID:          s.newID("F"),
		Title:       r.PostForm.Get("title"),
		UpdatedUsec: time.Now().UnixMicro(),
	}
	s.folders[folder.ID] = folder
	if parent, ok := s.folders[r.PostForm.Get("parent_id")]; ok {
		parent.Folders = append(parent.Folders, folder.ID)
	}
	writeJSON(w, folderPayload(folder))
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[s.current]
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid access token")
		return
	}
	writeJSON(w, user)
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "User not found")
		return
	}
	writeJSON(w, user)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := chi.URLParam(r, "id")
	if _, ok := s.threads[id]; !ok {
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}
	messages := s.messages[id]
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	out := make([]map[string]any, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		if count > 0 && len(out) >= count {
			break
		}
		out = append(out, messages[i])
	}
	writeJSON(w, out)
}

func (s *Server) newMessage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	threadID := r.PostForm.Get("thread_id")
	if _, ok := s.threads[threadID]; !ok {
		writeError(w, http.StatusNotFound, "not_found", "Thread not found")
		return
	}
	message := map[string]any{
		"id":           s.newID("M"),
		"author_id":    s.current,
		"text":         r.PostForm.Get("content"),
		"created_usec": time.Now().UnixMicro(),
	}
	s.messages[threadID] = append(s.messages[threadID], message)
	writeJSON(w, message)
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%sAAAAAAAA%02d", prefix, s.nextID%100)
}

func threadPayload(thread *Thread) map[string]any {
	html := thread.HTML
	if html == "" {
		html = strings.Join(thread.Pages, "")
	}
	return map[string]any{
		"thread": map[string]any{
			"id":           thread.ID,
			"title":        thread.Title,
			"type":         thread.Type,
			"link":         "https://quip.example/" + thread.ID,
			"updated_usec": thread.UpdatedUsec,
		},
		"user_ids":          []string{},
		"shared_folder_ids": []string{},
		"html":              html,
	}
}

func folderPayload(folder *Folder) map[string]any {
	children := make([]map[string]string, 0, len(folder.Threads)+len(folder.Folders))
	for _, id := range folder.Threads {
		children = append(children, map[string]string{"thread_id": id})
	}
	for _, id := range folder.Folders {
		children = append(children, map[string]string{"folder_id": id})
	}
	return map[string]any{
		"folder": map[string]any{
			"id":           folder.ID,
			"title":        folder.Title,
			"updated_usec": folder.UpdatedUsec,
		},
		"member_ids": []string{},
		"children":   children,
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":             code,
		"error_code":        status,
		"error_description": description,
	})
}
