// Package commands implements the chat command surface of the bot: it parses
// "octane ..." messages, runs the matching Octane operations through the
// authenticated runner and formats the replies.
package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/catalog"
	"github.com/octanebot/octanebot/internal/fields"
	"github.com/octanebot/octanebot/internal/forms"
	"github.com/octanebot/octanebot/internal/octane"
	"github.com/octanebot/octanebot/internal/runner"
)

// Fixed replies.
const (
	helpHint          = "\nType 'octane help' to review the syntax of supported commands."
	noIDMessage       = "I can't do that because you didn't mention entity ID. Try again. " + helpHint
	noFieldMessage    = "I can't do that because you didn't specify any field. Try again. " + helpHint
	initFailedMessage = "Bot initialization failed!"
	noParentMessage   = "I can't find that parent. Try again with a different parent."
	featureRootReply  = "I can't create a feature under the root. Please specify an epic as the parent for the feature."
	failurePrefix     = "Sorry, I can't do that because: "
)

// API is the part of the Octane client the commands use.
type API interface {
	forms.Source
	fields.ParentLookup
	GetEntity(ctx context.Context, collection, id string, fieldNames []string) (octane.Entity, error)
	Search(ctx context.Context, st octane.Subtype, text string) (*octane.EntityList, error)
	CreateEntity(ctx context.Context, collection string, e octane.Entity) (octane.Entity, error)
	UpdateEntity(ctx context.Context, collection, id string, e octane.Entity) (octane.Entity, error)
}

// Message is one chat message addressed to the bot.
type Message struct {
	User string
	Text string // without the bot address
}

// Responder delivers replies to the conversation a message came from.
type Responder interface {
	// Reply answers the user who sent the message.
	Reply(text string) error
	// Send posts to the conversation without addressing anyone.
	Send(text string) error
}

// CardSender is implemented by responders that can post rich cards.
type CardSender interface {
	SendCard(card Card) error
}

// Config wires a Dispatcher.
type Config struct {
	API     API
	Runner  *runner.Runner
	Catalog *catalog.Holder
	Forms   *forms.Registry
	BotName string
	Logger  *zap.Logger
}

// Dispatcher routes parsed commands to their handlers. It is safe for
// concurrent use; each message is handled independently.
type Dispatcher struct {
	api     API
	runner  *runner.Runner
	catalog *catalog.Holder
	forms   *forms.Registry
	loader  *forms.Loader
	botName string
	logger  *zap.Logger
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = &catalog.Holder{}
	}
	if cfg.Forms == nil {
		cfg.Forms = forms.NewRegistry(nil, logger)
	}
	if cfg.Runner == nil {
		cfg.Runner = runner.New(nil, nil, logger)
	}
	if cfg.BotName == "" {
		cfg.BotName = "hubot"
	}
	d := &Dispatcher{
		api:     cfg.API,
		runner:  cfg.Runner,
		catalog: cfg.Catalog,
		forms:   cfg.Forms,
		botName: cfg.BotName,
		logger:  logger,
	}
	if cfg.API != nil {
		d.loader = &forms.Loader{Source: cfg.API, Logger: logger}
	}
	return d
}

// BotName returns the name users address the bot by.
func (d *Dispatcher) BotName() string { return d.botName }

// Handle runs the command in msg and reports whether msg was a command.
func (d *Dispatcher) Handle(ctx context.Context, msg Message, resp Responder) bool {
	cmd := Parse(msg.Text)
	if cmd.Verb == VerbNone {
		return false
	}
	d.logger.Debug("handling command",
		zap.String("verb", cmd.Verb.String()),
		zap.String("subtype", cmd.Subtype),
		zap.String("user", msg.User),
	)
	c := &call{d: d, ctx: ctx, user: msg.User, resp: resp}

	var st octane.Subtype
	if cmd.Subtype != "" {
		var err error
		if st, err = octane.ParseSubtype(cmd.Subtype); err != nil {
			c.reply(failurePrefix + err.Error())
			return true
		}
	}

	switch cmd.Verb {
	case VerbGet:
		c.get(st, cmd.ID)
	case VerbSearch:
		c.search(st, cmd.Args)
	case VerbUpdate:
		c.update(st, cmd.ID, cmd.Args)
	case VerbCreate:
		c.create(st, cmd.Args)
	case VerbDisplay:
		c.display(st, cmd.Flag, cmd.Args)
	case VerbHide:
		c.hide(st, cmd.Flag, cmd.Args)
	case VerbReset:
		c.reset(st)
	case VerbStatus:
		c.status()
	case VerbHelp:
		c.reply(HelpText(d.botName))
	default:
		c.reply(fmt.Sprintf("Sorry, I didn't understand your message: %s. Type 'octane help' to review the syntax of supported commands.", msg.Text))
	}
	return true
}

// call carries one command execution.
type call struct {
	d    *Dispatcher
	ctx  context.Context
	user string
	resp Responder
}

func (c *call) reply(text string) {
	if err := c.resp.Reply(text); err != nil {
		c.d.logger.Warn("reply failed", zap.String("user", c.user), zap.Error(err))
	}
}

func (c *call) send(text string) {
	if text == "" {
		return
	}
	if err := c.resp.Send(text); err != nil {
		c.d.logger.Warn("send failed", zap.String("user", c.user), zap.Error(err))
	}
}

// rejection is an error already reported to the user.
type rejection struct {
	msg string
}

func (r *rejection) Error() string { return r.msg }

// reject replies msg and returns it as an error so the run is recorded as
// failed without a second reply.
func (c *call) reject(msg string) error {
	c.reply(msg)
	return &rejection{msg: msg}
}

// describe returns the message shown for a failed remote call.
func describe(err error) string {
	var apiErr *octane.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

// run executes body through the authenticated runner and reports failures
// that body has not reported itself.
func (c *call) run(name string, body func(ctx context.Context) error) runner.Outcome {
	out := c.d.runner.Run(c.ctx, runner.Operation{
		Name: name,
		Run:  body,
		OnFailure: func(err error) {
			var r *rejection
			if errors.As(err, &r) {
				return
			}
			c.reply(failurePrefix + describe(err))
		},
	}, c.user)

	switch out.Kind {
	case runner.Unavailable:
		c.reply(initFailedMessage)
	case runner.InternalFault:
		c.d.logger.Error("command failed", zap.String("op", name), zap.Error(out.Err))
		c.reply(failurePrefix + out.Err.Error())
	}
	return out
}

// ready returns the catalog, replying the initialization failure when it is
// not loaded yet.
func (c *call) ready() (*catalog.Catalog, bool) {
	cat, err := c.d.catalog.Get()
	if err != nil {
		c.reply(initFailedMessage)
		return nil, false
	}
	return cat, true
}

func (c *call) status() {
	board := c.d.runner.Status()
	c.reply(fmt.Sprintf("User [%s] status: %s", c.user, board.User(c.user)))
	c.reply(fmt.Sprintf("Global status: %s", board.Global()))
}
