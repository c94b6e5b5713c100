// Package mailchimptest provides an in-memory mailing list API server for
// tests. It implements the members, batches and discovery endpoints the
// client uses, applying batch operations through its own router.
package mailchimptest

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/listsync/internal/pkg/httputil"
)

// Member is the stored state of one list member.
type Member struct {
	Email       string
	Status      string
	MergeFields map[string]string
	Interests   map[string]bool
}

// Request is one recorded API call.
type Request struct {
	Method string
	Path   string
	Body   string
}

type list struct {
	name       string
	members    map[string]*Member // keyed by subscriber hash
	categories map[string]string  // id -> title
	interests  map[string]map[string]string
}

type failure struct {
	status int
	body   string
}

// Server is a fake API server. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	lists    map[string]*list
	batches  map[string]int
	requests []Request
	failures []failure
	router   chi.Router
	nextID   int

	// PendingPolls is how many status polls report a batch as started
	// before it is finished.
	PendingPolls int
}

// New starts a server. Close it when done.
func New() *Server {
	s := &Server{
		lists:   make(map[string]*list),
		batches: make(map[string]int),
	}
	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"health_status": "Everything's Chimpy!"})
	})
	r.Get("/lists", s.handleLists)
	r.Get("/lists/{listID}/members", s.handleMembers)
	r.Get("/lists/{listID}/members/{hash}", s.handleGetMember)
	r.Put("/lists/{listID}/members/{hash}", s.handlePutMember)
	r.Patch("/lists/{listID}/members/{hash}", s.handlePatchMember)
	r.Delete("/lists/{listID}/members/{hash}", s.handleDeleteMember)
	r.Get("/lists/{listID}/interest-categories", s.handleCategories)
	r.Get("/lists/{listID}/interest-categories/{categoryID}/interests", s.handleInterests)
	r.Post("/batches", s.handlePostBatch)
	r.Get("/batches/{batchID}", s.handleGetBatch)
	s.router = r
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	var body bytes.Buffer
	if r.Body != nil {
		_, _ = body.ReadFrom(r.Body)
		r.Body.Close()
		r.Body = nopCloser{bytes.NewReader(body.Bytes())}
	}
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body.String()})
	var f *failure
	if len(s.failures) > 0 {
		f = &s.failures[0]
		s.failures = s.failures[1:]
	}
	s.mu.Unlock()

	if f != nil {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
		return
	}
	s.router.ServeHTTP(w, r)
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }

// Hash returns the subscriber hash of email.
func Hash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// AddList registers an empty list.
func (s *Server) AddList(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list(id).name = name
}

// AddInterest registers an interest under a category of a list.
func (s *Server) AddInterest(listID, categoryID, categoryTitle, interestID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.list(listID)
	l.categories[categoryID] = categoryTitle
	if l.interests[categoryID] == nil {
		l.interests[categoryID] = make(map[string]string)
	}
	l.interests[categoryID][interestID] = name
}

// PutMember stores a member directly, bypassing the API.
func (s *Server) PutMember(listID string, m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Status == "" {
		m.Status = "subscribed"
	}
	if m.MergeFields == nil {
		m.MergeFields = map[string]string{}
	}
	if m.Interests == nil {
		m.Interests = map[string]bool{}
	}
	cp := m
	s.list(listID).members[Hash(m.Email)] = &cp
}

// Member returns a copy of the stored member, if any.
func (s *Server) Member(listID, email string) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return Member{}, false
	}
	m, ok := l.members[Hash(email)]
	if !ok {
		return Member{}, false
	}
	return copyMember(m), true
}

// Members returns copies of every member of a list, sorted by email.
func (s *Server) Members(listID string) []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Member
	if l, ok := s.lists[listID]; ok {
		for _, m := range l.members {
			out = append(out, copyMember(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// Requests returns the calls received so far, including the operations
// applied from batches.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests counts recorded calls with the given method whose path
// starts with prefix.
func (s *Server) CountRequests(method, prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// FailNext makes the next call answer with status and body.
func (s *Server) FailNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, body: body})
}

func (s *Server) list(id string) *list {
	l, ok := s.lists[id]
	if !ok {
		l = &list{
			members:    make(map[string]*Member),
			categories: make(map[string]string),
			interests:  make(map[string]map[string]string),
		}
		s.lists[id] = l
	}
	return l
}

func copyMember(m *Member) Member {
	cp := Member{Email: m.Email, Status: m.Status,
		MergeFields: make(map[string]string, len(m.MergeFields)),
		Interests:   make(map[string]bool, len(m.Interests))}
	for k, v := range m.MergeFields {
		cp.MergeFields[k] = v
	}
	for k, v := range m.Interests {
		cp.Interests[k] = v
	}
	return cp
}

func memberJSON(listID string, m *Member) map[string]interface{} {
	fullName := strings.TrimSpace(m.MergeFields["FNAME"] + " " + m.MergeFields["LNAME"])
	return map[string]interface{}{
		"id":            Hash(m.Email),
		"email_address": m.Email,
		"status":        m.Status,
		"full_name":     fullName,
		"merge_fields":  m.MergeFields,
		"interests":     m.Interests,
		"list_id":       listID,
	}
}

func (s *Server) handleLists(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.lists))
	for id := range s.lists {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var lists []map[string]interface{}
	for _, id := range ids {
		lists = append(lists, map[string]interface{}{
			"id":    id,
			"name":  s.lists[id].name,
			"stats": map[string]int{"member_count": len(s.lists[id].members)},
		})
	}
	httputil.OK(w, map[string]interface{}{"lists": lists, "total_items": len(lists)})
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "listID")
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	if count <= 0 {
		count = 10
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	status := r.URL.Query().Get("status")

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		httputil.NotFound(w)
		return
	}
	var all []*Member
	for _, m := range l.members {
		if status == "" || m.Status == status {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })

	page := []map[string]interface{}{}
	for i := offset; i < len(all) && i < offset+count; i++ {
		page = append(page, memberJSON(listID, all[i]))
	}
	httputil.OK(w, map[string]interface{}{
		"members":     page,
		"list_id":     listID,
		"total_items": len(all),
	})
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	listID, hash := chi.URLParam(r, "listID"), chi.URLParam(r, "hash")
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok || l.members[hash] == nil {
		httputil.NotFound(w)
		return
	}
	httputil.OK(w, memberJSON(listID, l.members[hash]))
}

type upsertBody struct {
	EmailAddress string            `json:"email_address"`
	StatusIfNew  string            `json:"status_if_new"`
	Status       string            `json:"status"`
	MergeFields  map[string]string `json:"merge_fields"`
	Interests    map[string]bool   `json:"interests"`
}

func (s *Server) handlePutMember(w http.ResponseWriter, r *http.Request) {
	listID, hash := chi.URLParam(r, "listID"), chi.URLParam(r, "hash")
	var body upsertBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.EmailAddress == "" {
		httputil.Invalid(w, "email_address is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.list(listID)
	m, exists := l.members[hash]
	if !exists {
		status := body.StatusIfNew
		if body.Status != "" {
			status = body.Status
		}
		if status == "" {
			httputil.Invalid(w, "status_if_new is required for new members")
			return
		}
		m = &Member{Status: status, MergeFields: map[string]string{}, Interests: map[string]bool{}}
	} else if body.Status != "" {
		m.Status = body.Status
	}
	delete(l.members, hash)
	m.Email = body.EmailAddress
	for k, v := range body.MergeFields {
		m.MergeFields[k] = v
	}
	for k, v := range body.Interests {
		m.Interests[k] = v
	}
	// A changed email moves the member to the hash of its new address.
	l.members[Hash(m.Email)] = m
	httputil.OK(w, memberJSON(listID, m))
}

func (s *Server) handlePatchMember(w http.ResponseWriter, r *http.Request) {
	listID, hash := chi.URLParam(r, "listID"), chi.URLParam(r, "hash")
	var body upsertBody
	if !httputil.Decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok || l.members[hash] == nil {
		httputil.NotFound(w)
		return
	}
	m := l.members[hash]
	if body.Status != "" {
		m.Status = body.Status
	}
	for k, v := range body.MergeFields {
		m.MergeFields[k] = v
	}
	for k, v := range body.Interests {
		m.Interests[k] = v
	}
	httputil.OK(w, memberJSON(listID, m))
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	listID, hash := chi.URLParam(r, "listID"), chi.URLParam(r, "hash")
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok || l.members[hash] == nil {
		httputil.NotFound(w)
		return
	}
	l.members[hash].Status = "archived"
	httputil.NoContent(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "listID")
	s.mu.Lock()
	defer s.mu.Unlock()
	var cats []map[string]string
	if l, ok := s.lists[listID]; ok {
		for id, title := range l.categories {
			cats = append(cats, map[string]string{"id": id, "title": title, "type": "checkboxes"})
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i]["id"] < cats[j]["id"] })
	httputil.OK(w, map[string]interface{}{"categories": cats, "total_items": len(cats)})
}

func (s *Server) handleInterests(w http.ResponseWriter, r *http.Request) {
	listID, categoryID := chi.URLParam(r, "listID"), chi.URLParam(r, "categoryID")
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]string
	if l, ok := s.lists[listID]; ok {
		for id, name := range l.interests[categoryID] {
			out = append(out, map[string]string{"id": id, "category_id": categoryID, "name": name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["id"] < out[j]["id"] })
	httputil.OK(w, map[string]interface{}{"interests": out, "total_items": len(out)})
}

type batchOperation struct {
	Method string            `json:"method"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params"`
	Body   string            `json:"body"`
}

func (s *Server) handlePostBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operations []batchOperation `json:"operations"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	errored := 0
	for _, op := range req.Operations {
		inner := httptest.NewRequest(op.Method, op.Path, strings.NewReader(op.Body))
		rec := httptest.NewRecorder()
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: op.Method, Path: op.Path, Body: op.Body})
		s.mu.Unlock()
		s.router.ServeHTTP(rec, inner)
		if rec.Code >= 300 {
			errored++
		}
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("batch-%d", s.nextID)
	s.batches[id] = s.PendingPolls
	s.mu.Unlock()

	httputil.OK(w, map[string]interface{}{
		"id":                  id,
		"status":              "pending",
		"total_operations":    len(req.Operations),
		"finished_operations": 0,
		"errored_operations":  errored,
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "batchID")
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining, ok := s.batches[id]
	if !ok {
		httputil.NotFound(w)
		return
	}
	status := "finished"
	if remaining > 0 {
		status = "started"
		s.batches[id] = remaining - 1
	}
	httputil.OK(w, map[string]interface{}{"id": id, "status": status})
}
