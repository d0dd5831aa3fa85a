// Package slackbot connects the command dispatcher to Slack.
// It uses the slack-go/slack library with Socket Mode for WebSocket-based communication.
package slackbot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/commands"
)

// Dispatcher runs chat commands.
type Dispatcher interface {
	Handle(ctx context.Context, msg commands.Message, resp commands.Responder) bool
	BotName() string
}

// Bot relays Slack mentions and direct messages to a Dispatcher.
type Bot struct {
	client     SlackAPI
	socketMode *socketmode.Client
	dispatcher Dispatcher
	logger     *zap.Logger

	// Bot identity for filtering out own messages and stripping mentions
	botUserID string
	connected atomic.Bool

	// Slack user ID → display name
	names   map[string]string
	namesMu sync.RWMutex

	inflight sync.WaitGroup
}

// BotConfig holds configuration for the Slack bot.
type BotConfig struct {
	BotToken string // xoxb-... Slack bot token
	AppToken string // xapp-... Slack app-level token (for Socket Mode)
	Debug    bool
}

// NewBot creates a new Slack bot.
func NewBot(cfg BotConfig, dispatcher Dispatcher, logger *zap.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("app token is required for Socket Mode")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("app token must start with xapp-")
	}

	client := slack.New(
		cfg.BotToken,
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(cfg.Debug),
	)

	bot := newBotForTest(client, dispatcher, logger)
	bot.socketMode = socketClient
	return bot, nil
}

// newBotForTest creates a Bot with injectable mock dependencies for testing.
// No Slack connection or token validation is performed.
func newBotForTest(slackAPI SlackAPI, dispatcher Dispatcher, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		client:     slackAPI,
		dispatcher: dispatcher,
		logger:     logger,
		names:      make(map[string]string),
	}
}

// Run starts the bot event loop. Blocks until ctx is canceled and every
// command in flight has replied.
func (b *Bot) Run(ctx context.Context) error {
	if b.socketMode == nil {
		return errors.New("socket mode client not configured")
	}
	authResp, err := b.client.AuthTest()
	if err != nil {
		b.logger.Warn("failed to get bot user ID", zap.Error(err))
	} else {
		b.botUserID = authResp.UserID
		b.logger.Info("authenticated with Slack", zap.String("bot_user_id", b.botUserID))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-b.socketMode.Events:
				b.handleEvent(ctx, evt)
			}
		}
	}()

	err = b.socketMode.RunContext(ctx)
	b.inflight.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// IsConnected returns whether the bot is currently connected to Slack.
func (b *Bot) IsConnected() bool { return b.connected.Load() }

// ---------- Event dispatch ----------

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("connecting to Socket Mode")

	case socketmode.EventTypeConnected:
		b.logger.Info("connected to Socket Mode")
		b.connected.Store(true)

	case socketmode.EventTypeConnectionError:
		b.logger.Warn("Socket Mode connection error", zap.Any("data", evt.Data))
		b.connected.Store(false)

	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.socketMode.Ack(*evt.Request)
		b.handleEventsAPI(ctx, eventsAPIEvent)
	}
}

func (b *Bot) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if b.ownMessage(ev.User, ev.BotID) {
			return
		}
		b.dispatch(ctx, incoming{
			channel: ev.Channel,
			user:    ev.User,
			thread:  ev.ThreadTimeStamp,
			text:    b.stripMention(ev.Text),
		})

	case *slackevents.MessageEvent:
		// Channel messages arrive as app mentions; only direct messages
		// are taken from the message stream.
		if ev.ChannelType != "im" || ev.SubType != "" || b.ownMessage(ev.User, ev.BotID) {
			return
		}
		b.dispatch(ctx, incoming{
			channel: ev.Channel,
			user:    ev.User,
			thread:  ev.ThreadTimeStamp,
			text:    b.stripMention(ev.Text),
			direct:  true,
		})
	}
}

func (b *Bot) ownMessage(user, botID string) bool {
	return botID != "" || (b.botUserID != "" && user == b.botUserID)
}

var mentionPattern = regexp.MustCompile(`^\s*<@[A-Z0-9]+(?:\|[^>]*)?>[:,]?\s*`)

// stripMention removes a leading user mention or bot name.
func (b *Bot) stripMention(text string) string {
	text = mentionPattern.ReplaceAllString(text, "")
	text, _ = commands.StripAddress(text, b.dispatcher.BotName())
	return strings.TrimSpace(text)
}

// incoming is one message addressed to the bot.
type incoming struct {
	channel string
	user    string
	thread  string
	text    string
	direct  bool
}

// dispatch handles msg without blocking the event loop.
func (b *Bot) dispatch(ctx context.Context, msg incoming) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		resp := &responder{
			client:  b.client,
			channel: msg.channel,
			user:    msg.user,
			thread:  msg.thread,
			direct:  msg.direct,
		}
		handled := b.dispatcher.Handle(ctx, commands.Message{User: b.userName(msg.user), Text: msg.text}, resp)
		if !handled {
			b.logger.Debug("ignoring message", zap.String("user", msg.user), zap.String("channel", msg.channel))
		}
	}()
}

// userName returns the Slack name of userID, caching lookups.
func (b *Bot) userName(userID string) string {
	b.namesMu.RLock()
	name, ok := b.names[userID]
	b.namesMu.RUnlock()
	if ok {
		return name
	}

	name = userID
	if info, err := b.client.GetUserInfo(userID); err == nil {
		if info.Name != "" {
			name = info.Name
		} else if info.RealName != "" {
			name = info.RealName
		}
	} else {
		b.logger.Debug("user lookup failed", zap.String("user", userID), zap.Error(err))
		return name
	}

	b.namesMu.Lock()
	b.names[userID] = name
	b.namesMu.Unlock()
	return name
}
