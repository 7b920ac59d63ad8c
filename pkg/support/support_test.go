package support

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/supportdesk/pkg/blob"
	"github.com/mahaj/supportdesk/pkg/logging"
	"github.com/mahaj/supportdesk/pkg/model"
	"github.com/mahaj/supportdesk/pkg/presence"
	"github.com/mahaj/supportdesk/pkg/snowflake"
	"github.com/mahaj/supportdesk/pkg/store"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []model.Event
	err    error
	delay  time.Duration
}

func (r *recorder) Notify(ctx context.Context, ev model.Event) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc      *Service
	store    *store.MemoryStore
	presence *presence.MemoryCache
	blobs    *blob.FSStore
	notes    *recorder
	clock    *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := store.NewMemoryStore()
	pc := presence.NewMemoryCache(presence.DefaultTTL).WithClock(c.now)
	blobs, err := blob.NewFSStore(t.TempDir(), blob.DefaultMaxSize)
	require.NoError(t, err)
	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)
	notes := &recorder{}

	svc := NewService(st, pc, ids, logging.Discard(),
		WithNotifier(notes), WithBlobs(blobs), WithClock(c.now))
	return &fixture{svc: svc, store: st, presence: pc, blobs: blobs, notes: notes, clock: c}
}

func (f *fixture) open(t *testing.T, id int64) int64 {
	t.Helper()
	now := f.clock.now()
	require.NoError(t, f.store.CreateConversation(context.Background(), &model.Conversation{
		ID:             id,
		Status:         model.StatusOpen,
		Requester:      model.Requester{AccountID: "u-1"},
		CreatedAt:      now,
		LastActivityAt: now,
	}))
	return id
}

func operatorSays(conv int64, body string) AppendInput {
	return AppendInput{ConversationID: conv, Role: model.RoleOperator, Identity: "op-7", Body: body}
}

func requesterSays(conv int64, body string) AppendInput {
	return AppendInput{ConversationID: conv, Role: model.RoleRequester, Identity: "account:u-1", Body: body}
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 42)

	hello, err := f.svc.AppendMessage(ctx, operatorSays(conv, "Hello, how can I help?"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), hello.ID)

	res, err := f.svc.PollSince(ctx, conv, 0, model.RoleRequester)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, int64(1), res.Messages[0].ID)
	assert.Equal(t, model.StatusWaitingResponse, res.Status)

	reply, err := f.svc.AppendMessage(ctx, requesterSays(conv, "My ride was cancelled"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), reply.ID)

	res, err = f.svc.PollSince(ctx, conv, 1, model.RoleOperator)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, int64(2), res.Messages[0].ID)
	assert.Equal(t, "My ride was cancelled", res.Messages[0].Body)

	_, err = f.svc.SetStatus(ctx, conv, model.StatusResolved, "op-7")
	require.NoError(t, err)
	res, err = f.svc.PollSince(ctx, conv, 2, model.RoleRequester)
	require.NoError(t, err)
	assert.Equal(t, model.StatusResolved, res.Status)

	_, err = f.svc.AppendMessage(ctx, requesterSays(conv, "Thanks, one more thing"))
	require.NoError(t, err, "resolved is not closed")

	_, err = f.svc.SetStatus(ctx, conv, model.StatusClosed, "op-7")
	require.NoError(t, err)
	_, err = f.svc.AppendMessage(ctx, requesterSays(conv, "hello?"))
	assert.ErrorIs(t, err, appErrors.ErrConversationClosed)
	assert.Equal(t, appErrors.CodeConversationClosed, appErrors.CodeOf(err))
}

func TestAppendMessage_ConcurrentIDsAreDense(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 7)

	const perRole = 50
	var wg sync.WaitGroup
	ids := make(chan int64, 2*perRole)
	for _, in := range []AppendInput{operatorSays(conv, "op"), requesterSays(conv, "req")} {
		for i := 0; i < perRole; i++ {
			wg.Add(1)
			go func(in AppendInput) {
				defer wg.Done()
				msg, err := f.svc.AppendMessage(ctx, in)
				if assert.NoError(t, err) {
					ids <- msg.ID
				}
			}(in)
		}
	}
	wg.Wait()
	close(ids)

	var got []int64
	for id := range ids {
		got = append(got, id)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, 2*perRole)
	for i, id := range got {
		assert.Equal(t, int64(i+1), id)
	}

	res, err := f.svc.PollSince(ctx, conv, 0, model.RoleOperator)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2*perRole)
	for i := 1; i < len(res.Messages); i++ {
		prev, cur := res.Messages[i-1], res.Messages[i]
		assert.Less(t, prev.ID, cur.ID)
		assert.False(t, cur.CreatedAt.Before(prev.CreatedAt), "created_at follows id order")
	}
}

func TestAppendMessage_CreatedAtNeverRunsBackwards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 8)

	first, err := f.svc.AppendMessage(ctx, operatorSays(conv, "one"))
	require.NoError(t, err)
	f.clock.advance(-time.Minute)
	second, err := f.svc.AppendMessage(ctx, operatorSays(conv, "two"))
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestPollSince_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 9)
	for _, body := range []string{"a", "b", "c"} {
		_, err := f.svc.AppendMessage(ctx, operatorSays(conv, body))
		require.NoError(t, err)
	}

	first, err := f.svc.PollSince(ctx, conv, 1, model.RoleRequester)
	require.NoError(t, err)
	second, err := f.svc.PollSince(ctx, conv, 1, model.RoleRequester)
	require.NoError(t, err)
	assert.Equal(t, first.Messages, second.Messages)
	assert.Equal(t, first.Status, second.Status)

	empty, err := f.svc.PollSince(ctx, conv, 3, model.RoleRequester)
	require.NoError(t, err)
	assert.NotNil(t, empty.Messages)
	assert.Empty(t, empty.Messages)
}

func TestPollSince_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 10)

	_, err := f.svc.PollSince(ctx, conv, -1, model.RoleOperator)
	assert.Equal(t, appErrors.CodeInvalidArgument, appErrors.CodeOf(err))

	_, err = f.svc.PollSince(ctx, conv, 0, model.Role("admin"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidRole)

	_, err = f.svc.PollSince(ctx, 999, 0, model.RoleOperator)
	assert.ErrorIs(t, err, appErrors.ErrConversationNotFound)
}

func TestVisibility_InternalNotesStayWithOperators(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 11)

	note := operatorSays(conv, "customer is a VIP")
	note.Visibility = model.VisibilityInternal
	_, err := f.svc.AppendMessage(ctx, note)
	require.NoError(t, err)
	_, err = f.svc.AppendMessage(ctx, operatorSays(conv, "Hi there"))
	require.NoError(t, err)

	res, err := f.svc.PollSince(ctx, conv, 0, model.RoleRequester)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, int64(2), res.Messages[0].ID)

	res, err = f.svc.PollSince(ctx, conv, 0, model.RoleOperator)
	require.NoError(t, err)
	assert.Len(t, res.Messages, 2)

	conversation, err := f.svc.Conversation(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingResponse, conversation.Status, "only the public reply moves status")
}

func TestVisibility_RequesterCannotPostInternal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 12)

	in := requesterSays(conv, "sneaky")
	in.Visibility = model.VisibilityInternal
	msg, err := f.svc.AppendMessage(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityPublic, msg.Visibility)
}

func TestClosed_InternalNotesStillAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 13)

	_, err := f.svc.SetStatus(ctx, conv, model.StatusClosed, "op-7")
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(ctx, operatorSays(conv, "reopen please"))
	assert.ErrorIs(t, err, appErrors.ErrConversationClosed)

	note := operatorSays(conv, "closed after refund")
	note.Visibility = model.VisibilityInternal
	msg, err := f.svc.AppendMessage(ctx, note)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.ID, "rejected append did not consume an id")

	_, err = f.svc.SetStatus(ctx, conv, model.StatusOpen, "op-7")
	assert.ErrorIs(t, err, appErrors.ErrTerminalStatus)
}

func TestAppendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 14)

	tests := []struct {
		name string
		in   AppendInput
		want error
	}{
		{"empty body", requesterSays(conv, "   "), appErrors.ErrEmptyMessage},
		{"too long", requesterSays(conv, strings.Repeat("é", MaxBodyLength+1)), appErrors.ErrBodyTooLong},
		{"bad role", AppendInput{ConversationID: conv, Role: "bot", Body: "hi"}, appErrors.ErrInvalidRole},
		{"missing attachment", AppendInput{ConversationID: conv, Role: model.RoleRequester, AttachmentKey: "0b7e1c7e-9a52-4a5b-8d3c-111111111111"}, appErrors.ErrAttachmentNotFound},
		{"missing conversation", requesterSays(404, "hi"), appErrors.ErrConversationNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AppendMessage(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	ok, err := f.svc.AppendMessage(ctx, requesterSays(conv, strings.Repeat("é", MaxBodyLength)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), ok.ID, "rejections never consume ids")
}

func TestFirstReplyAssigns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 15)

	_, err := f.svc.AppendMessage(ctx, operatorSays(conv, "on it"))
	require.NoError(t, err)
	second := operatorSays(conv, "me too")
	second.Identity = "op-9"
	_, err = f.svc.AppendMessage(ctx, second)
	require.NoError(t, err)

	c, err := f.svc.Conversation(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, "op-7", c.AssignedOperator, "first reply wins")

	c, err = f.svc.Assign(ctx, conv, "op-9")
	require.NoError(t, err)
	assert.Equal(t, "op-9", c.AssignedOperator)

	_, err = f.svc.Assign(ctx, conv, " ")
	assert.ErrorIs(t, err, appErrors.ErrInvalidOperator)
}

func TestStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 16)

	_, err := f.svc.AppendMessage(ctx, operatorSays(conv, "hi"))
	require.NoError(t, err)
	_, err = f.svc.AppendMessage(ctx, requesterSays(conv, "hello"))
	require.NoError(t, err)
	c, err := f.svc.Conversation(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, c.Status)

	c, err = f.svc.SetStatus(ctx, conv, model.StatusResolved, "op-7")
	require.NoError(t, err)
	assert.Equal(t, "op-7", c.ResolvedBy)
	require.NotNil(t, c.ResolvedAt)

	c, err = f.svc.SetStatus(ctx, conv, model.StatusOpen, "op-7")
	require.NoError(t, err, "resolved can be reopened")
	assert.Empty(t, c.ResolvedBy)
	assert.Nil(t, c.ResolvedAt)

	_, err = f.svc.SetStatus(ctx, conv, model.Status("archived"), "op-7")
	assert.ErrorIs(t, err, appErrors.ErrInvalidStatus)
}

func TestSetTyping_ExpiresWithoutHeartbeat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 17)

	require.NoError(t, f.svc.SetTyping(ctx, conv, model.RoleOperator))

	res, err := f.svc.PollSince(ctx, conv, 0, model.RoleRequester)
	require.NoError(t, err)
	assert.True(t, res.Presence.Typing)
	assert.Equal(t, model.RoleOperator, res.Presence.Role)

	f.clock.advance(presence.DefaultTTL.Typing + time.Second)
	res, err = f.svc.PollSince(ctx, conv, 0, model.RoleRequester)
	require.NoError(t, err)
	assert.False(t, res.Presence.Typing)
	assert.True(t, res.Presence.Online)

	err = f.svc.SetTyping(ctx, 404, model.RoleOperator)
	assert.ErrorIs(t, err, appErrors.ErrConversationNotFound)
}

func TestSetTyping_Debounced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 18)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.svc.SetTyping(ctx, conv, model.RoleRequester))
	}
	f.svc.Wait()
	assert.Equal(t, []model.EventType{model.EventTyping}, f.notes.types())

	f.clock.advance(time.Second)
	require.NoError(t, f.svc.SetTyping(ctx, conv, model.RoleRequester))
	f.svc.Wait()
	assert.Len(t, f.notes.types(), 2)
}

func TestPollSince_RefreshesCallerPresence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 19)

	res, err := f.svc.PollSince(ctx, conv, 0, model.RoleOperator)
	require.NoError(t, err)
	assert.False(t, res.Presence.Online, "requester has not polled yet")

	_, err = f.svc.PollSince(ctx, conv, 0, model.RoleRequester)
	require.NoError(t, err)
	res, err = f.svc.PollSince(ctx, conv, 0, model.RoleOperator)
	require.NoError(t, err)
	assert.True(t, res.Presence.Online)

	f.clock.advance(presence.DefaultTTL.Online)
	res, err = f.svc.PollSince(ctx, conv, 0, model.RoleOperator)
	require.NoError(t, err)
	assert.False(t, res.Presence.Online)
}

func TestAttachments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 20)

	att, err := f.svc.Upload(ctx, conv, model.RoleRequester, "account:u-1", "receipt.pdf", "application/pdf",
		bytes.NewReader([]byte("%PDF-1.7")))
	require.NoError(t, err)

	msg, err := f.svc.AppendMessage(ctx, AppendInput{
		ConversationID: conv,
		Role:           model.RoleRequester,
		Identity:       "account:u-1",
		AttachmentKey:  att.Key,
	})
	require.NoError(t, err)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "receipt.pdf", msg.Attachment.Filename)
	assert.Empty(t, msg.Body)

	got, rc, err := f.svc.Attachment(ctx, conv, msg.ID, model.RoleOperator)
	require.NoError(t, err)
	payload, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(payload))
	assert.Equal(t, int64(8), got.Size)

	require.NoError(t, f.svc.DeleteMessage(ctx, conv, msg.ID))
	_, err = f.blobs.Stat(ctx, att.Key)
	assert.ErrorIs(t, err, appErrors.ErrAttachmentNotFound, "blob removed with its message")

	_, _, err = f.svc.Attachment(ctx, conv, msg.ID, model.RoleOperator)
	assert.ErrorIs(t, err, appErrors.ErrMessageNotFound)

	err = f.svc.DeleteMessage(ctx, conv, msg.ID)
	assert.ErrorIs(t, err, appErrors.ErrMessageNotFound)
}

func TestAttachment_InternalHiddenFromRequester(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 21)

	att, err := f.svc.Upload(ctx, conv, model.RoleOperator, "op-7", "notes.txt", "text/plain", strings.NewReader("audit"))
	require.NoError(t, err)
	msg, err := f.svc.AppendMessage(ctx, AppendInput{
		ConversationID: conv,
		Role:           model.RoleOperator,
		Identity:       "op-7",
		AttachmentKey:  att.Key,
		Visibility:     model.VisibilityInternal,
	})
	require.NoError(t, err)

	_, _, err = f.svc.Attachment(ctx, conv, msg.ID, model.RoleRequester)
	assert.ErrorIs(t, err, appErrors.ErrMessageNotFound)
}

func TestAttachment_BelongsToOneMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.open(t, 30)
	second := f.open(t, 31)

	withFile := func(conv int64, key string) AppendInput {
		in := requesterSays(conv, "")
		in.AttachmentKey = key
		return in
	}

	att, err := f.svc.Upload(ctx, first, model.RoleRequester, "account:u-1", "r.txt", "text/plain", strings.NewReader("receipt"))
	require.NoError(t, err)
	msg, err := f.svc.AppendMessage(ctx, withFile(first, att.Key))
	require.NoError(t, err)

	_, err = f.svc.AppendMessage(ctx, withFile(second, att.Key))
	assert.ErrorIs(t, err, appErrors.ErrAttachmentNotFound, "uploaded for another conversation")
	_, err = f.svc.AppendMessage(ctx, withFile(first, att.Key))
	assert.ErrorIs(t, err, appErrors.ErrAttachmentClaimed, "already attached")

	other, err := f.svc.Upload(ctx, second, model.RoleRequester, "account:u-1", "r.txt", "text/plain", strings.NewReader("receipt"))
	require.NoError(t, err)
	kept, err := f.svc.AppendMessage(ctx, withFile(second, other.Key))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteMessage(ctx, first, msg.ID))
	_, rc, err := f.svc.Attachment(ctx, second, kept.ID, model.RoleRequester)
	require.NoError(t, err, "deleting one message leaves other attachments alone")
	require.NoError(t, rc.Close())
}

func TestAttachment_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 32)

	note, err := f.svc.Upload(ctx, conv, model.RoleOperator, "op-7", "audit.txt", "text/plain", strings.NewReader("internal"))
	require.NoError(t, err)

	in := requesterSays(conv, "")
	in.AttachmentKey = note.Key
	_, err = f.svc.AppendMessage(ctx, in)
	assert.ErrorIs(t, err, appErrors.ErrAttachmentNotFound)

	in = operatorSays(conv, "")
	in.Identity = "op-9"
	in.AttachmentKey = note.Key
	_, err = f.svc.AppendMessage(ctx, in)
	assert.ErrorIs(t, err, appErrors.ErrAttachmentNotFound, "another operator")

	_, err = f.svc.Upload(ctx, 999, model.RoleOperator, "op-7", "a.txt", "text/plain", strings.NewReader("x"))
	assert.ErrorIs(t, err, appErrors.ErrConversationNotFound)
}

func TestAttachment_ReleasedWhenAppendFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 33)

	att, err := f.svc.Upload(ctx, conv, model.RoleRequester, "account:u-1", "r.txt", "text/plain", strings.NewReader("receipt"))
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, conv, model.StatusResolved, "op-7")
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, conv, model.StatusClosed, "op-7")
	require.NoError(t, err)

	in := requesterSays(conv, "")
	in.AttachmentKey = att.Key
	_, err = f.svc.AppendMessage(ctx, in)
	require.ErrorIs(t, err, appErrors.ErrConversationClosed)

	_, err = f.blobs.Claim(ctx, att.Key, blob.Owner{ConversationID: conv, Role: model.RoleRequester, Identity: "account:u-1"})
	assert.NoError(t, err, "the rejected append gave the claim back")
}

type stuckBlobs struct{ *blob.FSStore }

func (stuckBlobs) Delete(ctx context.Context, key string) error {
	return errors.New("disk is read-only")
}

func TestDeleteMessage_BlobFailureKeepsDeletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ids, err := snowflake.NewNode(2)
	require.NoError(t, err)
	svc := NewService(f.store, f.presence, ids, logging.Discard(), WithBlobs(stuckBlobs{f.blobs}), WithClock(f.clock.now))
	conv := f.open(t, 34)

	att, err := svc.Upload(ctx, conv, model.RoleRequester, "account:u-1", "r.txt", "text/plain", strings.NewReader("receipt"))
	require.NoError(t, err)
	in := requesterSays(conv, "")
	in.AttachmentKey = att.Key
	msg, err := svc.AppendMessage(ctx, in)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(ctx, conv, msg.ID), "the message is gone even if its blob lingers")
	_, err = f.store.Message(ctx, conv, msg.ID)
	assert.ErrorIs(t, err, appErrors.ErrMessageNotFound)
}

func TestDeleteMessage_KeepsIDReserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	conv := f.open(t, 22)

	for _, body := range []string{"one", "two"} {
		_, err := f.svc.AppendMessage(ctx, operatorSays(conv, body))
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.DeleteMessage(ctx, conv, 2))

	res, err := f.svc.PollSince(ctx, conv, 0, model.RoleOperator)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, int64(1), res.Messages[0].ID)

	next, err := f.svc.AppendMessage(ctx, operatorSays(conv, "three"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.ID)
}

func TestNotifierFailureDoesNotFailAppend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notes.err = errors.New("broker down")
	f.notes.delay = 50 * time.Millisecond
	conv := f.open(t, 23)

	start := time.Now()
	msg, err := f.svc.AppendMessage(ctx, operatorSays(conv, "still delivered"))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), f.notes.delay, "append does not wait on the notifier")

	f.svc.Wait()
	assert.Equal(t, []model.EventType{model.EventMessage}, f.notes.types())

	res, err := f.svc.PollSince(ctx, conv, 0, model.RoleRequester)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, msg.ID, res.Messages[0].ID)
}

func TestOpenConversation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	conv, err := f.svc.OpenConversation(ctx, model.Requester{Guest: &model.GuestIdentity{Name: "Ana", Email: "ana@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, conv.Status)
	assert.NotZero(t, conv.ID)

	_, err = f.svc.OpenConversation(ctx, model.Requester{AccountID: "u-1", Guest: &model.GuestIdentity{Name: "x", Email: "y"}})
	assert.Equal(t, appErrors.CodeInvalidArgument, appErrors.CodeOf(err))
}
