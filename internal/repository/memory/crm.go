package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/service/listsync"
)

// Email is one address held by a contact.
type Email struct {
	Address string
	Bulk    bool // preferred for bulk mail
	Primary bool
	OnHold  bool
}

// Contact is a CRM contact as the in-memory CRM stores it.
type Contact struct {
	ID         int64
	FirstName  string
	LastName   string
	Emails     []Email
	Deleted    bool
	OptOut     bool
	DoNotEmail bool
	Deceased   bool
}

// UsableEmail returns the address bulk mail should go to: a bulk address,
// else the primary one, else any, skipping addresses on hold.
func (c Contact) UsableEmail() string {
	pick := func(ok func(Email) bool) string {
		for _, e := range c.Emails {
			if !e.OnHold && e.Address != "" && ok(e) {
				return e.Address
			}
		}
		return ""
	}
	if a := pick(func(e Email) bool { return e.Bulk }); a != "" {
		return a
	}
	if a := pick(func(e Email) bool { return e.Primary }); a != "" {
		return a
	}
	return pick(func(Email) bool { return true })
}

func (c Contact) mailable() bool {
	return !c.Deleted && !c.OptOut && !c.DoNotEmail && !c.Deceased
}

func (c Contact) holds(email string) (string, bool) {
	key := domain.EmailKey(email)
	for _, e := range c.Emails {
		if domain.EmailKey(e.Address) == key {
			return e.Address, true
		}
	}
	return "", false
}

// GroupEvent records one applied membership change.
type GroupEvent struct {
	GroupID   int64
	ContactID int64
	Added     bool
	Change    domain.GroupChange
}

// CRM implements listsync.CRM in memory.
type CRM struct {
	mu        sync.Mutex
	contacts  map[int64]*Contact
	groups    map[int64]map[int64]bool
	nextID    int64
	events    []GroupEvent
	saves     int
	refreshed []int64
}

// NewCRM creates an empty CRM.
func NewCRM() *CRM {
	return &CRM{
		contacts: make(map[int64]*Contact),
		groups:   make(map[int64]map[int64]bool),
		nextID:   1,
	}
}

var _ listsync.CRM = (*CRM)(nil)

// Put stores a contact, assigning an id when it has none.
func (m *CRM) Put(c Contact) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.nextID
	}
	if c.ID >= m.nextID {
		m.nextID = c.ID + 1
	}
	cp := c
	cp.Emails = append([]Email(nil), c.Emails...)
	m.contacts[c.ID] = &cp
	return c.ID
}

// AddContact stores a contact with a single primary address.
func (m *CRM) AddContact(email, firstName, lastName string) int64 {
	return m.Put(Contact{FirstName: firstName, LastName: lastName,
		Emails: []Email{{Address: email, Primary: true}}})
}

// Join puts contacts in a group without recording events.
func (m *CRM) Join(groupID int64, ids ...int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.group(groupID)[id] = true
	}
}

// InGroup reports group membership.
func (m *CRM) InGroup(groupID, id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups[groupID][id]
}

// Contact returns a copy of a stored contact.
func (m *CRM) Contact(id int64) (Contact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return Contact{}, false
	}
	return *c, true
}

// FindByEmail returns the ids of contacts holding email.
func (m *CRM) FindByEmail(email string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, c := range m.contacts {
		if _, ok := c.holds(email); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Events returns the membership changes applied through the CRM contract.
func (m *CRM) Events() []GroupEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GroupEvent(nil), m.events...)
}

// Saves counts SaveContact calls.
func (m *CRM) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// ResetCounters clears recorded events and save counts.
func (m *CRM) ResetCounters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.saves = 0
}

func (m *CRM) group(id int64) map[int64]bool {
	g, ok := m.groups[id]
	if !ok {
		g = make(map[int64]bool)
		m.groups[id] = g
	}
	return g
}

func (m *CRM) RefreshGroupCache(_ context.Context, groupIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, groupIDs...)
	return nil
}

func (m *CRM) ContactsInGroup(_ context.Context, groupID int64) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for id := range m.groups[groupID] {
		c, ok := m.contacts[id]
		if !ok || !c.mailable() {
			continue
		}
		email := c.UsableEmail()
		if email == "" {
			continue
		}
		out = append(out, domain.Contact{ID: id, Email: email, FirstName: c.FirstName, LastName: c.LastName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *CRM) GroupMembers(_ context.Context, groupID int64, contactIDs []int64) (map[int64]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]bool)
	for _, id := range contactIDs {
		if m.groups[groupID][id] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *CRM) holders(email string) []*Contact {
	var out []*Contact
	for _, c := range m.contacts {
		if c.Deleted {
			continue
		}
		if _, ok := c.holds(email); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *CRM) UniqueContactsByEmail(_ context.Context, emails []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for _, e := range emails {
		if hs := m.holders(e); len(hs) == 1 {
			out[domain.EmailKey(e)] = hs[0].ID
		}
	}
	return out, nil
}

func (m *CRM) UniqueContactsByEmailName(_ context.Context, keys []domain.NameKey) (map[domain.NameKey]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.NameKey]int64)
	for _, k := range keys {
		var found []int64
		for _, c := range m.holders(k.Email) {
			if c.FirstName == k.FirstName && c.LastName == k.LastName {
				found = append(found, c.ID)
			}
		}
		if len(found) == 1 {
			k.Email = domain.EmailKey(k.Email)
			out[k] = found[0]
		}
	}
	return out, nil
}

func (m *CRM) ContactsByEmail(_ context.Context, email string, groupID int64) ([]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Contact
	for _, c := range m.holders(email) {
		addr, _ := c.holds(email)
		out = append(out, domain.Contact{
			ID:        c.ID,
			Email:     addr,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			InGroup:   m.groups[groupID][c.ID],
		})
	}
	return out, nil
}

func (m *CRM) GetContacts(_ context.Context, ids []int64) (map[int64]domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]domain.Contact, len(ids))
	for _, id := range ids {
		c, ok := m.contacts[id]
		if !ok || c.Deleted {
			continue
		}
		email := c.UsableEmail()
		if email == "" && len(c.Emails) > 0 {
			email = c.Emails[0].Address
		}
		out[id] = domain.Contact{ID: id, Email: email, FirstName: c.FirstName, LastName: c.LastName}
	}
	return out, nil
}

func (m *CRM) AddToGroup(_ context.Context, groupID int64, contactIDs []int64, change domain.GroupChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(groupID)
	for _, id := range contactIDs {
		if _, ok := m.contacts[id]; !ok {
			return fmt.Errorf("contact %d does not exist", id)
		}
		if g[id] {
			continue
		}
		g[id] = true
		m.events = append(m.events, GroupEvent{GroupID: groupID, ContactID: id, Added: true, Change: change})
	}
	return nil
}

func (m *CRM) RemoveFromGroup(_ context.Context, groupID int64, contactIDs []int64, change domain.GroupChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.group(groupID)
	for _, id := range contactIDs {
		if !g[id] {
			continue
		}
		delete(g, id)
		m.events = append(m.events, GroupEvent{GroupID: groupID, ContactID: id, Added: false, Change: change})
	}
	return nil
}

func (m *CRM) SaveContact(_ context.Context, u domain.ContactUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	var c *Contact
	if u.ID == 0 {
		if u.Email == nil || *u.Email == "" {
			return 0, fmt.Errorf("new contact needs an email")
		}
		c = &Contact{ID: m.nextID}
		m.nextID++
		m.contacts[c.ID] = c
	} else {
		var ok bool
		if c, ok = m.contacts[u.ID]; !ok {
			return 0, fmt.Errorf("contact %d does not exist", u.ID)
		}
	}
	if u.Email != nil {
		if _, held := c.holds(*u.Email); !held {
			for i := range c.Emails {
				c.Emails[i].Primary = false
			}
			c.Emails = append(c.Emails, Email{Address: *u.Email, Primary: true})
		}
	}
	if u.FirstName != nil {
		c.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		c.LastName = *u.LastName
	}
	return c.ID, nil
}
