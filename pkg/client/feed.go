// Package client keeps a viewer's local copy of a conversation in step with
// the server. Feed is the pure reconciliation state; Session drives it over a
// Transport.
package client

import (
	"sort"

	"github.com/mahaj/supportdesk/pkg/model"
)

// Draft is what the composer submitted. It is handed back when an append
// fails so the text can be restored.
type Draft struct {
	Body          string           `json:"body,omitempty"`
	AttachmentKey string           `json:"attachment_key,omitempty"`
	Visibility    model.Visibility `json:"visibility,omitempty"`
}

// Sender identifies the viewer that owns a feed.
type Sender struct {
	Role     model.Role
	Identity string
}

// Entry is one rendered row. It is pending until Message is set.
type Entry struct {
	TempID  string
	Draft   Draft
	Message *model.Message
}

func (e Entry) Pending() bool { return e.Message == nil }

// Feed holds confirmed entries in id order followed by pending entries in
// compose order. Every method returns a new Feed and leaves the receiver
// untouched.
type Feed struct {
	self    Sender
	entries []Entry
	cursor  int64
}

func NewFeed(self Sender) Feed {
	return Feed{self: self}
}

// Cursor is the highest id up to which the feed has no gaps.
func (f Feed) Cursor() int64 { return f.cursor }

func (f Feed) Len() int { return len(f.entries) }

// Entries returns a copy of the rows in render order.
func (f Feed) Entries() []Entry {
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

func (f Feed) clone() Feed {
	f.entries = f.Entries()
	return f
}

// confirmed returns the length of the confirmed prefix.
func (f Feed) confirmed() int {
	return sort.Search(len(f.entries), func(i int) bool { return f.entries[i].Pending() })
}

func (f Feed) has(id int64) bool {
	n := f.confirmed()
	i := sort.Search(n, func(i int) bool { return f.entries[i].Message.ID >= id })
	return i < n && f.entries[i].Message.ID == id
}

func (f Feed) indexOf(tempID string) int {
	if tempID == "" {
		return -1
	}
	for i, e := range f.entries {
		if e.TempID == tempID {
			return i
		}
	}
	return -1
}

// insert places a confirmed entry at its id position. The receiver must be
// a clone.
func (f *Feed) insert(e Entry) {
	n := f.confirmed()
	i := sort.Search(n, func(i int) bool { return f.entries[i].Message.ID > e.Message.ID })
	f.entries = append(f.entries, Entry{})
	copy(f.entries[i+1:], f.entries[i:])
	f.entries[i] = e
}

func (f *Feed) remove(i int) Entry {
	e := f.entries[i]
	f.entries = append(f.entries[:i], f.entries[i+1:]...)
	return e
}

// advance moves the cursor over every contiguous confirmed id.
func (f *Feed) advance() {
	for _, e := range f.entries[:f.confirmed()] {
		if e.Message.ID == f.cursor+1 {
			f.cursor++
		}
	}
}

func (f Feed) AddPending(tempID string, d Draft) Feed {
	next := f.clone()
	next.entries = append(next.entries, Entry{TempID: tempID, Draft: d})
	return next
}

// Confirm promotes the pending entry tempID to msg. If a poll already
// delivered msg the pending entry is dropped instead, so msg renders once.
// The cursor only moves over ids without gaps before them; a confirmed id
// past an unseen one waits for the next poll.
func (f Feed) Confirm(tempID string, msg model.Message) Feed {
	i := f.indexOf(tempID)
	if i >= 0 && !f.entries[i].Pending() {
		// Already promoted by Reconcile.
		return f
	}
	next := f.clone()
	var e Entry
	if i >= 0 {
		e = next.remove(i)
	}
	if !next.has(msg.ID) {
		e.TempID = tempID
		e.Message = &msg
		next.insert(e)
	}
	next.advance()
	return next
}

// Reject removes the pending entry tempID and returns its draft. The cursor
// is not touched.
func (f Feed) Reject(tempID string) (Feed, Draft, bool) {
	i := f.indexOf(tempID)
	if i < 0 || !f.entries[i].Pending() {
		return f, Draft{}, false
	}
	next := f.clone()
	e := next.remove(i)
	return next, e.Draft, true
}

// Reconcile merges a poll batch. Messages already present are skipped.
// A message from this viewer that matches a pending draft promotes that
// entry, which covers a poll landing before the append response.
func (f Feed) Reconcile(batch []model.Message) Feed {
	next := f.clone()
	for _, msg := range batch {
		if next.has(msg.ID) {
			if msg.ID > next.cursor {
				next.cursor = msg.ID
			}
			continue
		}
		e := Entry{}
		if i := next.matchPending(msg); i >= 0 {
			e = next.remove(i)
		}
		e.Message = &msg
		next.insert(e)
		if msg.ID > next.cursor {
			next.cursor = msg.ID
		}
	}
	return next
}

func (f Feed) matchPending(msg model.Message) int {
	if msg.SenderRole != f.self.Role || (f.self.Identity != "" && msg.SenderIdentity != f.self.Identity) {
		return -1
	}
	key := ""
	if msg.Attachment != nil {
		key = msg.Attachment.Key
	}
	for i := f.confirmed(); i < len(f.entries); i++ {
		d := f.entries[i].Draft
		if d.Body == msg.Body && d.AttachmentKey == key && f.visibility(d) == msg.Visibility {
			return i
		}
	}
	return -1
}

// visibility is the visibility the server will give d.
func (f Feed) visibility(d Draft) model.Visibility {
	if d.Visibility == "" || f.self.Role == model.RoleRequester {
		return model.VisibilityPublic
	}
	return d.Visibility
}
