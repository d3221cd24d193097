package services

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitpair/coachlink/db"
	"github.com/fitpair/coachlink/models"
	"github.com/fitpair/coachlink/realtime"
)

type recordedEvent struct {
	Room        string
	Event       string
	Data        interface{}
	ExcludeUser uint
}

// recordingBroadcaster captures everything the services emit so tests can
// assert on delivery order and exclusion without a live hub.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) ToRoom(room, event string, data interface{}, excludeUser uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Room: room, Event: event, Data: data, ExcludeUser: excludeUser})
	return nil
}

func (b *recordingBroadcaster) ToUser(userID uint, event string, data interface{}) error {
	return b.ToRoom(realtime.UserRoom(userID), event, data, 0)
}

func (b *recordingBroadcaster) all() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]recordedEvent, len(b.events))
	copy(out, b.events)
	return out
}

func (b *recordingBroadcaster) ofEvent(event string) []recordedEvent {
	var out []recordedEvent
	for _, e := range b.all() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type pushCall struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type fakePushGateway struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
}

func (p *fakePushGateway) Send(_ context.Context, deviceToken, title, body string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, pushCall{Token: deviceToken, Title: title, Body: body, Data: data})
	return p.err
}

func (p *fakePushGateway) sent() []pushCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]pushCall, len(p.calls))
	copy(out, p.calls)
	return out
}

type chatFixture struct {
	store   *db.MemoryStore
	bus     *recordingBroadcaster
	push    *fakePushGateway
	chat    ChatService
	coach   *models.User
	athlete *models.User
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	ctx := context.Background()

	store := db.NewMemoryStore()
	bus := &recordingBroadcaster{}
	push := &fakePushGateway{}
	notifier := NewNotificationService(store, store, push, bus)
	chat := NewChatService(store, store, notifier, bus)

	coach, err := store.CreateUser(ctx, &models.User{
		Fullname: "Maya Ortiz",
		Username: "maya",
		Email:    "maya@fitpair.dev",
		Role:     models.RoleCoach,
	})
	require.NoError(t, err)

	athlete, err := store.CreateUser(ctx, &models.User{
		Fullname:  "Dan Reyes",
		Username:  "dan",
		Email:     "dan@fitpair.dev",
		Role:      models.RoleAthlete,
		PushToken: "ExponentPushToken[dan-device]",
	})
	require.NoError(t, err)

	return &chatFixture{store: store, bus: bus, push: push, chat: chat, coach: coach, athlete: athlete}
}

func (f *chatFixture) directConversation(t *testing.T) *models.Conversation {
	t.Helper()
	conv, apiErr := f.chat.GetOrCreateDirectConversation(context.Background(), f.coach.ID, f.athlete.ID)
	require.Nil(t, apiErr)
	return conv
}

func TestGetOrCreateDirectConversationIdempotent(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	first, apiErr := f.chat.GetOrCreateDirectConversation(ctx, f.coach.ID, f.athlete.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, models.ConversationKindDirect, first.Kind)
	assert.Len(t, first.Participants, 2)

	// Same pair in either order resolves to the same conversation.
	second, apiErr := f.chat.GetOrCreateDirectConversation(ctx, f.athlete.ID, f.coach.ID)
	require.Nil(t, apiErr)
	assert.Equal(t, first.ID, second.ID)

	convs, apiErr := f.chat.ListConversations(ctx, f.coach.ID)
	require.Nil(t, apiErr)
	assert.Len(t, convs, 1)
}

func TestGetOrCreateDirectConversationRejectsInvalidPartner(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, apiErr := f.chat.GetOrCreateDirectConversation(ctx, f.coach.ID, f.coach.ID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	_, apiErr = f.chat.GetOrCreateDirectConversation(ctx, f.coach.ID, 0)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestCreateGroupConversationDeduplicatesParticipants(t *testing.T) {
	f := newChatFixture(t)

	conv, apiErr := f.chat.CreateGroupConversation(context.Background(), f.coach.ID, &models.CreateGroupConversationRequest{
		Name:           "Morning Crew",
		ParticipantIDs: []uint{f.athlete.ID, f.athlete.ID, f.coach.ID},
	})
	require.Nil(t, apiErr)
	assert.Equal(t, models.ConversationKindGroup, conv.Kind)
	assert.Equal(t, "Morning Crew", conv.Name)
	assert.Len(t, conv.Participants, 2)
}

func TestSendMessagePipeline(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.directConversation(t)

	msg, apiErr := f.chat.SendMessage(ctx, f.coach, &models.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        "  hello  ",
	})
	require.Nil(t, apiErr)
	require.NotZero(t, msg.ID)
	assert.Equal(t, "hello", msg.Content, "content is trimmed before persisting")
	assert.Equal(t, models.MessageKindText, msg.Kind)
	assert.Contains(t, msg.ReadBy(), f.coach.ID, "sender has read their own message")

	// message:new lands before conversation:updated, both in the
	// conversation room, neither excluding anyone.
	room := realtime.ConversationRoom(conv.ID)
	events := f.bus.all()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, realtime.EventMessageNew, events[0].Event)
	assert.Equal(t, room, events[0].Room)
	assert.Zero(t, events[0].ExcludeUser)
	assert.Equal(t, realtime.EventConversationUpdated, events[1].Event)
	assert.Equal(t, room, events[1].Room)

	payload, ok := events[0].Data.(realtime.MessageNewPayload)
	require.True(t, ok)
	assert.Equal(t, msg.ID, payload.Message.ID)

	// The recipient's unread counter moved, the sender's did not.
	reloaded, err := f.store.FindConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	counts := reloaded.UnreadCounts()
	assert.Equal(t, 1, counts[f.athlete.ID])
	assert.Equal(t, 0, counts[f.coach.ID])
	assert.Equal(t, "hello", reloaded.LastMessagePreview)
	assert.Equal(t, f.coach.ID, reloaded.LastMessageSenderID)

	// Fan-out: one stored notification, one notification:new frame and
	// one push, all addressed to the recipient only.
	notifications, err := f.store.ListNotificationsForUser(ctx, f.athlete.ID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, f.coach.Fullname, notifications[0].Title)
	assert.Equal(t, "hello", notifications[0].Body)
	assert.Equal(t, "/conversations/1", notifications[0].DeepLink)

	frames := f.bus.ofEvent(realtime.EventNotificationNew)
	require.Len(t, frames, 1)
	assert.Equal(t, realtime.UserRoom(f.athlete.ID), frames[0].Room)

	pushes := f.push.sent()
	require.Len(t, pushes, 1)
	assert.Equal(t, f.athlete.PushToken, pushes[0].Token)

	senderNotifications, err := f.store.ListNotificationsForUser(ctx, f.coach.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, senderNotifications)
}

func TestSendMessageValidation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.directConversation(t)

	t.Run("empty message", func(t *testing.T) {
		_, apiErr := f.chat.SendMessage(ctx, f.coach, &models.SendMessageRequest{ConversationID: conv.ID, Content: "   "})
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, apiErr := f.chat.SendMessage(ctx, f.coach, &models.SendMessageRequest{ConversationID: conv.ID, Content: "hi", Kind: "voice"})
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, apiErr := f.chat.SendMessage(ctx, f.coach, &models.SendMessageRequest{ConversationID: 999, Content: "hi"})
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("non-participant", func(t *testing.T) {
		outsider, err := f.store.CreateUser(ctx, &models.User{Fullname: "Eve", Username: "eve", Email: "eve@fitpair.dev", Role: models.RoleAthlete})
		require.NoError(t, err)
		_, apiErr := f.chat.SendMessage(ctx, outsider, &models.SendMessageRequest{ConversationID: conv.ID, Content: "hi"})
		require.NotNil(t, apiErr)
		assert.Equal(t, http.StatusForbidden, apiErr.Status)
	})
}

func TestSendMessageAttachmentOnly(t *testing.T) {
	f := newChatFixture(t)
	conv := f.directConversation(t)

	msg, apiErr := f.chat.SendMessage(context.Background(), f.coach, &models.SendMessageRequest{
		ConversationID: conv.ID,
		Kind:           models.MessageKindImage,
		Attachment: &models.Attachment{
			URL:      "https://cdn.fitpair.dev/u/warmup.jpg",
			MimeType: "image/jpeg",
		},
	})
	require.Nil(t, apiErr)
	assert.Equal(t, models.MessageKindImage, msg.Kind)
	assert.Equal(t, "[image]", msg.Preview())
}

func TestUnreadAccumulatesWhileRecipientAway(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.directConversation(t)

	for _, content := range []string{"warm up first", "then 5k easy", "stretch after"} {
		_, apiErr := f.chat.SendMessage(ctx, f.coach, &models.SendMessageRequest{ConversationID: conv.ID, Content: content})
		require.Nil(t, apiErr)
	}

	reloaded, err := f.store.FindConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.UnreadCounts()[f.athlete.ID])
	assert.Equal(t, "stretch after", reloaded.LastMessagePreview)

	// The counter agrees with the per-message receipts.
	unread, err := f.store.CountUnread(ctx, conv.ID, f.athlete.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	notifications, err := f.store.ListNotificationsForUser(ctx, f.athlete.ID, 10)
	require.NoError(t, err)
	assert.Len(t, notifications, 3)
}

func TestMarkReadResetsAndBroadcastsOnce(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.directConversation(t)

	for i := 0; i < 2; i++ {
		_, apiErr := f.chat.SendMessage(ctx, f.coach, &models.SendMessageRequest{ConversationID: conv.ID, Content: "hey"})
		require.Nil(t, apiErr)
	}

	require.Nil(t, f.chat.MarkRead(ctx, f.athlete.ID, conv.ID))

	reloaded, err := f.store.FindConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.UnreadCounts()[f.athlete.ID])

	unread, err := f.store.CountUnread(ctx, conv.ID, f.athlete.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	receipts := f.bus.ofEvent(realtime.EventMessageRead)
	require.Len(t, receipts, 1)
	assert.Equal(t, realtime.ConversationRoom(conv.ID), receipts[0].Room)
	assert.Equal(t, f.athlete.ID, receipts[0].ExcludeUser, "the reader does not receive their own receipt")
	payload, ok := receipts[0].Data.(realtime.ReadReceiptPayload)
	require.True(t, ok)
	assert.Equal(t, f.athlete.ID, payload.UserID)

	// Nothing left to acknowledge: the second call stays silent.
	require.Nil(t, f.chat.MarkRead(ctx, f.athlete.ID, conv.ID))
	assert.Len(t, f.bus.ofEvent(realtime.EventMessageRead), 1)
}

func TestMarkReadRequiresMembership(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.directConversation(t)

	outsider, err := f.store.CreateUser(ctx, &models.User{Fullname: "Eve", Username: "eve2", Email: "eve2@fitpair.dev", Role: models.RoleAthlete})
	require.NoError(t, err)

	apiErr := f.chat.MarkRead(ctx, outsider.ID, conv.ID)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestTypingRelayExcludesSender(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.directConversation(t)

	require.Nil(t, f.chat.Typing(ctx, f.coach, conv.ID, true))
	require.Nil(t, f.chat.Typing(ctx, f.coach, conv.ID, false))

	starts := f.bus.ofEvent(realtime.EventTypingStart)
	require.Len(t, starts, 1)
	assert.Equal(t, f.coach.ID, starts[0].ExcludeUser)
	payload, ok := starts[0].Data.(realtime.TypingPayload)
	require.True(t, ok)
	assert.Equal(t, f.coach.Fullname, payload.UserName)

	stops := f.bus.ofEvent(realtime.EventTypingStop)
	require.Len(t, stops, 1)

	outsider := &models.User{Model: models.Model{ID: 99}, Fullname: "Eve"}
	apiErr := f.chat.Typing(ctx, outsider, conv.ID, true)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestListMessagesNewestFirstWithPaging(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.directConversation(t)

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		_, apiErr := f.chat.SendMessage(ctx, f.coach, &models.SendMessageRequest{ConversationID: conv.ID, Content: c})
		require.Nil(t, apiErr)
	}

	page1, total, apiErr := f.chat.ListMessages(ctx, f.athlete.ID, conv.ID, 1, 2)
	require.Nil(t, apiErr)
	assert.EqualValues(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "five", page1[0].Content)
	assert.Equal(t, "four", page1[1].Content)

	page3, _, apiErr := f.chat.ListMessages(ctx, f.athlete.ID, conv.ID, 3, 2)
	require.Nil(t, apiErr)
	require.Len(t, page3, 1)
	assert.Equal(t, "one", page3[0].Content)

	_, _, apiErr = f.chat.ListMessages(ctx, 99, conv.ID, 1, 2)
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestConcurrentSendsBroadcastInPersistenceOrder(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	conv := f.directConversation(t)

	const perSender = 25
	var wg sync.WaitGroup
	for _, sender := range []*models.User{f.coach, f.athlete} {
		wg.Add(1)
		go func(u *models.User) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, apiErr := f.chat.SendMessage(ctx, u, &models.SendMessageRequest{ConversationID: conv.ID, Content: "go"})
				assert.Nil(t, apiErr)
			}
		}(sender)
	}
	wg.Wait()

	frames := f.bus.ofEvent(realtime.EventMessageNew)
	require.Len(t, frames, 2*perSender)

	var lastID uint
	for _, frame := range frames {
		payload, ok := frame.Data.(realtime.MessageNewPayload)
		require.True(t, ok)
		assert.Greater(t, payload.Message.ID, lastID, "broadcast order must match persistence order")
		lastID = payload.Message.ID
	}

	_, total, apiErr := f.chat.ListMessages(ctx, f.coach.ID, conv.ID, 1, 20)
	require.Nil(t, apiErr)
	assert.EqualValues(t, 2*perSender, total)
}
