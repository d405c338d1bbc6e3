package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConversationAPI serves canned history pages and scripted send
// results.
type fakeConversationAPI struct {
	mu         sync.Mutex
	pages      map[time.Time][]Message
	initial    []Message
	sendResult string
	sendCalls  int
}

func (f *fakeConversationAPI) GetMessages(ctx context.Context, conversationID string, limit int, before time.Time) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if before.IsZero() {
		return f.initial
	}
	return f.pages[before]
}

func (f *fakeConversationAPI) SendMessage(ctx context.Context, conversationID, content string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	return f.sendResult
}

func historyMsg(id string, at time.Time) Message {
	return Message{ID: id, ConversationID: "conversation:a", SenderID: "user:bob", Content: "hi", CreatedAt: at}
}

func TestMessageStoreOptimisticSendPromotesInPlace(t *testing.T) {
	api := &fakeConversationAPI{sendResult: "chat_message:real"}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	s.HandleIncoming(historyMsg("chat_message:0", time.Now()))
	s.SetInput("  hello there  ")
	s.Send(context.Background())

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	sent := msgs[1]
	assert.Equal(t, "chat_message:real", sent.ID)
	assert.Equal(t, "hello there", sent.Content)
	assert.Equal(t, "user:alice", sent.SenderID)
	assert.Equal(t, "Alice", sent.SenderName)
	assert.Empty(t, s.Input())
	assert.False(t, s.Sending())
}

func TestMessageStoreFailedSendRestoresInput(t *testing.T) {
	api := &fakeConversationAPI{sendResult: ""}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	s.SetInput("hello")
	s.Send(context.Background())

	assert.Empty(t, s.Messages())
	assert.Equal(t, "hello", s.Input())
}

func TestMessageStoreFailedSendKeepsNewerDraft(t *testing.T) {
	api := &fakeConversationAPI{sendResult: ""}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	s.SetInput("hello")
	s.Send(context.Background())
	s.SetInput("already retyping")
	s.Send(context.Background())

	// The second failure restores nothing over what the user typed since.
	assert.Equal(t, "already retyping", s.Input())
}

func TestMessageStoreIgnoresBlankAndDoubleSend(t *testing.T) {
	api := &fakeConversationAPI{sendResult: "chat_message:1"}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	s.SetInput("   ")
	s.Send(context.Background())
	assert.Zero(t, api.sendCalls)
	assert.Empty(t, s.Messages())
}

func TestMessageStoreSuppressesSelfEcho(t *testing.T) {
	api := &fakeConversationAPI{sendResult: "chat_message:real"}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	s.SetInput("hello")
	s.Send(context.Background())

	// The confirmed message comes back over the feed too; the optimistic
	// entry already represents it.
	s.HandleIncoming(Message{ID: "chat_message:real", ConversationID: "conversation:a", SenderID: "user:alice", Content: "hello"})

	assert.Len(t, s.Messages(), 1)
}

func TestMessageStoreDeduplicatesIncoming(t *testing.T) {
	api := &fakeConversationAPI{}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	msg := historyMsg("chat_message:1", time.Now())
	s.HandleIncoming(msg)
	s.HandleIncoming(msg)

	assert.Len(t, s.Messages(), 1)
}

func TestMessageStorePagination(t *testing.T) {
	newest := time.Now().UTC().Truncate(time.Second)
	var initial []Message
	for i := 0; i < DefaultPageSize; i++ {
		initial = append(initial, historyMsg("chat_message:n"+strings.Repeat("i", i+1), newest.Add(time.Duration(i)*time.Second)))
	}
	oldest := initial[0].CreatedAt

	api := &fakeConversationAPI{
		initial: initial,
		pages: map[time.Time][]Message{
			oldest: {historyMsg("chat_message:older", oldest.Add(-time.Hour))},
		},
	}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	s.LoadInitial(context.Background())
	require.Len(t, s.Messages(), DefaultPageSize)
	assert.True(t, s.HasMore())

	s.LoadMore(context.Background())
	msgs := s.Messages()
	require.Len(t, msgs, DefaultPageSize+1)
	assert.Equal(t, "chat_message:older", msgs[0].ID)
	// Short page means history is exhausted; further loads are no-ops.
	assert.False(t, s.HasMore())

	s.LoadMore(context.Background())
	assert.Len(t, s.Messages(), DefaultPageSize+1)
}

func TestMessageStoreShortInitialPageEndsPagination(t *testing.T) {
	api := &fakeConversationAPI{initial: []Message{historyMsg("chat_message:1", time.Now())}}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	s.LoadInitial(context.Background())
	assert.False(t, s.HasMore())
}

func TestMessageStoreClosedIgnoresDelivery(t *testing.T) {
	api := &fakeConversationAPI{}
	s := NewMessageStore(api, "conversation:a", "user:alice", "Alice")

	s.Close()
	s.HandleIncoming(historyMsg("chat_message:1", time.Now()))
	s.SetInput("hello")
	s.Send(context.Background())

	assert.Empty(t, s.Messages())
	assert.Zero(t, api.sendCalls)
}
