package slackbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/octanebot/octanebot/internal/commands"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ---------- Mock Slack API ----------

// postedMessage captures a PostMessage call for assertion.
type postedMessage struct {
	ChannelID string
	Values    url.Values
}

type mockSlackAPI struct {
	mu sync.Mutex

	PostedMessages []postedMessage
	userLookups    atomic.Int32

	postMessageErr error
	users          map[string]*slack.User
}

func newMockSlackAPI() *mockSlackAPI {
	return &mockSlackAPI{
		users: map[string]*slack.User{
			"U1": {ID: "U1", Name: "alice"},
			"U2": {ID: "U2", RealName: "Bob Builder"},
		},
	}
}

func (m *mockSlackAPI) AuthTest() (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "UBOTTEST"}, nil
}

func (m *mockSlackAPI) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postMessageErr != nil {
		return "", "", m.postMessageErr
	}
	_, vals, err := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	if err != nil {
		return "", "", err
	}
	m.PostedMessages = append(m.PostedMessages, postedMessage{ChannelID: channelID, Values: vals})
	return channelID, "1234567890.000001", nil
}

func (m *mockSlackAPI) GetUserInfo(userID string) (*slack.User, error) {
	m.userLookups.Add(1)
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, errors.New("user_not_found")
}

func (m *mockSlackAPI) posted() []postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]postedMessage(nil), m.PostedMessages...)
}

// ---------- Fake dispatcher ----------

type handledCall struct {
	msg  commands.Message
	resp commands.Responder
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []handledCall
	run   func(commands.Message, commands.Responder) bool
}

func (d *fakeDispatcher) Handle(_ context.Context, msg commands.Message, resp commands.Responder) bool {
	d.mu.Lock()
	d.calls = append(d.calls, handledCall{msg: msg, resp: resp})
	d.mu.Unlock()
	if d.run != nil {
		return d.run(msg, resp)
	}
	return true
}

func (d *fakeDispatcher) BotName() string { return "hubot" }

func (d *fakeDispatcher) handled() []handledCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]handledCall(nil), d.calls...)
}

func newTestBot(t *testing.T, d Dispatcher) (*Bot, *mockSlackAPI) {
	t.Helper()
	mockAPI := newMockSlackAPI()
	bot := newBotForTest(mockAPI, d, nil)
	bot.botUserID = "UBOTTEST"
	return bot, mockAPI
}

func callback(data any) slackevents.EventsAPIEvent {
	return slackevents.EventsAPIEvent{
		Type:       slackevents.CallbackEvent,
		InnerEvent: slackevents.EventsAPIInnerEvent{Data: data},
	}
}

// deliver feeds one event to the bot and waits for its replies.
func deliver(bot *Bot, data any) {
	bot.handleEventsAPI(context.Background(), callback(data))
	bot.inflight.Wait()
}

// ---------- Tests ----------

func TestStripMention(t *testing.T) {
	bot, _ := newTestBot(t, &fakeDispatcher{})
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "mention", text: "<@UBOTTEST> octane status", want: "octane status"},
		{name: "mention with colon", text: "<@UBOTTEST>: octane help", want: "octane help"},
		{name: "labelled mention", text: "<@UBOTTEST|hubot> octane help", want: "octane help"},
		{name: "bot name", text: "hubot octane status", want: "octane status"},
		{name: "plain", text: "octane status", want: "octane status"},
		{name: "mention inside text kept", text: "octane get defect <@U1>", want: "octane get defect <@U1>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, bot.stripMention(tt.text))
		})
	}
}

func TestAppMentionIsDispatched(t *testing.T) {
	d := &fakeDispatcher{}
	bot, _ := newTestBot(t, d)

	deliver(bot, &slackevents.AppMentionEvent{User: "U1", Channel: "C1", Text: "<@UBOTTEST> octane get defect 12"})

	calls := d.handled()
	require.Len(t, calls, 1)
	assert.Equal(t, commands.Message{User: "alice", Text: "octane get defect 12"}, calls[0].msg)
}

func TestDirectMessageIsDispatched(t *testing.T) {
	d := &fakeDispatcher{}
	bot, _ := newTestBot(t, d)

	deliver(bot, &slackevents.MessageEvent{User: "U2", Channel: "D1", ChannelType: "im", Text: "octane status"})

	calls := d.handled()
	require.Len(t, calls, 1)
	assert.Equal(t, commands.Message{User: "Bob Builder", Text: "octane status"}, calls[0].msg)
}

func TestIgnoredEvents(t *testing.T) {
	tests := []struct {
		name string
		data any
	}{
		{name: "channel message", data: &slackevents.MessageEvent{User: "U1", Channel: "C1", ChannelType: "channel", Text: "octane status"}},
		{name: "edited direct message", data: &slackevents.MessageEvent{User: "U1", Channel: "D1", ChannelType: "im", SubType: "message_changed"}},
		{name: "own direct message", data: &slackevents.MessageEvent{User: "UBOTTEST", Channel: "D1", ChannelType: "im", Text: "octane status"}},
		{name: "other bot mention", data: &slackevents.AppMentionEvent{User: "U9", BotID: "B9", Channel: "C1", Text: "<@UBOTTEST> octane status"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			bot, _ := newTestBot(t, d)
			deliver(bot, tt.data)
			assert.Empty(t, d.handled())
		})
	}
}

func TestNonCallbackEventsIgnored(t *testing.T) {
	d := &fakeDispatcher{}
	bot, _ := newTestBot(t, d)
	bot.handleEventsAPI(context.Background(), slackevents.EventsAPIEvent{Type: slackevents.URLVerification})
	bot.inflight.Wait()
	assert.Empty(t, d.handled())
}

func TestUserNamesAreCached(t *testing.T) {
	bot, mockAPI := newTestBot(t, &fakeDispatcher{})

	assert.Equal(t, "alice", bot.userName("U1"))
	assert.Equal(t, "alice", bot.userName("U1"))
	assert.Equal(t, int32(1), mockAPI.userLookups.Load())

	// Failed lookups fall back to the ID and are retried later.
	assert.Equal(t, "U404", bot.userName("U404"))
	assert.Equal(t, "U404", bot.userName("U404"))
	assert.Equal(t, int32(3), mockAPI.userLookups.Load())
}

func TestReplyInChannelMentionsSender(t *testing.T) {
	d := &fakeDispatcher{run: func(_ commands.Message, resp commands.Responder) bool {
		_ = resp.Reply("done")
		_ = resp.Send("details")
		return true
	}}
	bot, mockAPI := newTestBot(t, d)

	deliver(bot, &slackevents.AppMentionEvent{User: "U1", Channel: "C1", Text: "<@UBOTTEST> octane status", ThreadTimeStamp: "111.222"})

	posted := mockAPI.posted()
	require.Len(t, posted, 2)
	assert.Equal(t, "C1", posted[0].ChannelID)
	assert.Equal(t, "<@U1> done", posted[0].Values.Get("text"))
	assert.Equal(t, "111.222", posted[0].Values.Get("thread_ts"))
	assert.Equal(t, "details", posted[1].Values.Get("text"))
}

func TestReplyInDirectMessageIsPlain(t *testing.T) {
	d := &fakeDispatcher{run: func(_ commands.Message, resp commands.Responder) bool {
		_ = resp.Reply("done")
		return true
	}}
	bot, mockAPI := newTestBot(t, d)

	deliver(bot, &slackevents.MessageEvent{User: "U1", Channel: "D1", ChannelType: "im", Text: "octane status"})

	posted := mockAPI.posted()
	require.Len(t, posted, 1)
	assert.Equal(t, "done", posted[0].Values.Get("text"))
	assert.Empty(t, posted[0].Values.Get("thread_ts"))
}

func TestSendCardPostsAttachment(t *testing.T) {
	mockAPI := newMockSlackAPI()
	resp := &responder{client: mockAPI, channel: "C1", user: "U1"}

	card := commands.Card{
		Title:    "ID: 7 | Crash | Phase: New",
		Color:    "#b21646",
		Fields:   []commands.CardField{{Title: "Severity", Value: "High", Short: true}, {Title: "Description", Value: "*bold*"}},
		Markdown: []string{"Description"},
		Fallback: "ID: 7 - Crash - Phase:New\n",
	}
	require.NoError(t, resp.SendCard(card))

	posted := mockAPI.posted()
	require.Len(t, posted, 1)
	var atts []slack.Attachment
	require.NoError(t, json.Unmarshal([]byte(posted[0].Values.Get("attachments")), &atts))
	require.Len(t, atts, 1)
	assert.Equal(t, "#b21646", atts[0].Color)
	assert.Equal(t, card.Title, atts[0].Title)
	assert.Equal(t, card.Fallback, atts[0].Fallback)
	assert.Equal(t, []string{"fields"}, atts[0].MarkdownIn)
	assert.Equal(t, []slack.AttachmentField{
		{Title: "Severity", Value: "High", Short: true},
		{Title: "Description", Value: "*bold*"},
	}, atts[0].Fields)
}

func TestAttachmentWithoutMarkdown(t *testing.T) {
	att := Attachment(commands.Card{Title: "t", Fields: []commands.CardField{{Title: "a", Value: "b"}}})
	assert.Nil(t, att.MarkdownIn)
	assert.Len(t, att.Fields, 1)
}

func TestPostFailureIsReturned(t *testing.T) {
	mockAPI := newMockSlackAPI()
	mockAPI.postMessageErr = errors.New("channel_not_found")
	resp := &responder{client: mockAPI, channel: "C1", user: "U1"}

	err := resp.Reply("hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestDispatcherEndToEnd(t *testing.T) {
	d := commands.New(commands.Config{BotName: "hubot"})
	bot, mockAPI := newTestBot(t, d)

	deliver(bot, &slackevents.AppMentionEvent{User: "U1", Channel: "C1", Text: "<@UBOTTEST> octane get defect 5"})

	posted := mockAPI.posted()
	require.Len(t, posted, 1)
	assert.Equal(t, "<@U1> Bot initialization failed!", posted[0].Values.Get("text"))
}

func TestRunWithoutSocketMode(t *testing.T) {
	bot, _ := newTestBot(t, &fakeDispatcher{})
	assert.Error(t, bot.Run(context.Background()))
}

func TestNewBotValidatesTokens(t *testing.T) {
	tests := []struct {
		name string
		cfg  BotConfig
	}{
		{name: "missing bot token", cfg: BotConfig{AppToken: "xapp-1"}},
		{name: "missing app token", cfg: BotConfig{BotToken: "xoxb-1"}},
		{name: "wrong app token", cfg: BotConfig{BotToken: "xoxb-1", AppToken: "xoxb-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBot(tt.cfg, &fakeDispatcher{}, nil)
			assert.Error(t, err)
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	bot, _ := newTestBot(t, &fakeDispatcher{})
	var ready atomic.Bool
	handler := NewHealthServer(bot, ready.Load, 0, nil).Handler()

	get := func(path string) int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusServiceUnavailable, get("/healthz"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz"))

	bot.connected.Store(true)
	ready.Store(true)
	assert.Equal(t, http.StatusOK, get("/healthz"))
	assert.Equal(t, http.StatusOK, get("/readyz"))
}
