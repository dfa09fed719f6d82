package command

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nochan-bot/nochan/nochan/conversation"
	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Kind
		command bool
	}{
		{"new", "/new", KindNew, true},
		{"stop", "/stop", KindStop, true},
		{"help", "/help", KindHelp, true},
		{"case insensitive", "/NEW", KindNew, true},
		{"trailing words ignored", "/new please", KindNew, true},
		{"unrecognized name", "/frobnicate", KindUnknown, true},
		{"bare slash word", "/", KindUnknown, true},
		{"plain dialogue", "hello there", "", false},
		{"slash mid-text", "look at /new", "", false},
		{"empty", "", "", false},
		{"whitespace only", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := Classify(tt.text)
			assert.Equal(t, tt.command, ok)
			if tt.command {
				assert.Equal(t, tt.want, kind)
			}
		})
	}
}

// stubStore implements ports.ConversationStore in memory for executor tests.
type stubStore struct {
	mu       sync.Mutex
	active   map[string]*conversation.Conversation
	archived []string
	created  []string
}

func newStubStore() *stubStore {
	return &stubStore{active: make(map[string]*conversation.Conversation)}
}

func (s *stubStore) GetActive(_ context.Context, key string) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[key], nil
}

func (s *stubStore) Create(_ context.Context, key string) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &conversation.Conversation{ID: "conv-" + key, Key: key, Status: conversation.StatusActive}
	s.active[key] = conv
	s.created = append(s.created, key)
	return conv, nil
}

func (s *stubStore) ArchiveActive(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[key]; !ok {
		return false, nil
	}
	delete(s.active, key)
	s.archived = append(s.archived, key)
	return true, nil
}

func (s *stubStore) SetContinuationToken(_ context.Context, _, _ string) error { return nil }

var _ ports.ConversationStore = (*stubStore)(nil)

func privateMsg(text string) ports.Message {
	return ports.Message{
		Key:        "private:1001",
		Scope:      ports.ScopePrivate,
		Text:       text,
		SenderID:   1001,
		SenderName: "alice",
	}
}

func TestExecutorNewArchivesAndCreates(t *testing.T) {
	store := newStubStore()
	_, err := store.Create(context.Background(), "private:1001")
	require.NoError(t, err)

	var replies []string
	reply := func(_ context.Context, _ ports.Message, text string) error {
		replies = append(replies, text)
		return nil
	}

	exec := NewExecutor(store, reply, func(string) bool { return false }, zerolog.Nop())

	handled, err := exec.TryHandle(context.Background(), privateMsg("/new"))
	require.NoError(t, err)
	assert.True(t, handled)

	assert.Equal(t, []string{"private:1001"}, store.archived)
	assert.Equal(t, []string{"private:1001", "private:1001"}, store.created)
	require.Len(t, replies, 1)
	assert.Equal(t, msgNewConversation, replies[0])
}

func TestExecutorStopReportsCancelOutcome(t *testing.T) {
	store := newStubStore()

	var replies []string
	reply := func(_ context.Context, _ ports.Message, text string) error {
		replies = append(replies, text)
		return nil
	}

	cancelled := false
	exec := NewExecutor(store, reply, func(key string) bool {
		cancelled = true
		return key == "private:1001"
	}, zerolog.Nop())

	handled, err := exec.TryHandle(context.Background(), privateMsg("/stop"))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, cancelled)
	require.Len(t, replies, 1)
	assert.Equal(t, msgStopped, replies[0])
}

func TestExecutorStopWithNothingInFlight(t *testing.T) {
	store := newStubStore()

	var replies []string
	reply := func(_ context.Context, _ ports.Message, text string) error {
		replies = append(replies, text)
		return nil
	}

	exec := NewExecutor(store, reply, func(string) bool { return false }, zerolog.Nop())

	handled, err := exec.TryHandle(context.Background(), privateMsg("/stop"))
	require.NoError(t, err)
	assert.True(t, handled)
	require.Len(t, replies, 1)
	assert.Equal(t, msgNothingToStop, replies[0])
}

func TestExecutorUnknownCommandShowsHelp(t *testing.T) {
	store := newStubStore()

	var replies []string
	reply := func(_ context.Context, _ ports.Message, text string) error {
		replies = append(replies, text)
		return nil
	}

	exec := NewExecutor(store, reply, func(string) bool { return false }, zerolog.Nop())

	for _, text := range []string{"/help", "/bogus"} {
		replies = nil
		handled, err := exec.TryHandle(context.Background(), privateMsg(text))
		require.NoError(t, err)
		assert.True(t, handled)
		require.Len(t, replies, 1)
		assert.Equal(t, HelpText, replies[0])
	}
}

func TestExecutorIgnoresDialogue(t *testing.T) {
	store := newStubStore()
	exec := NewExecutor(store, func(_ context.Context, _ ports.Message, _ string) error {
		t.Fatal("reply should not be called for dialogue")
		return nil
	}, func(string) bool { return false }, zerolog.Nop())

	handled, err := exec.TryHandle(context.Background(), privateMsg("hello"))
	require.NoError(t, err)
	assert.False(t, handled)
}
