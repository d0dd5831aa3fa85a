// Package console runs the command dispatcher over a terminal, so the bot
// can be tried without a chat workspace. Replies use the plain-text
// rendering of entities.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/octanebot/octanebot/internal/commands"
)

// Dispatcher runs chat commands.
type Dispatcher interface {
	Handle(ctx context.Context, msg commands.Message, resp commands.Responder) bool
	BotName() string
}

// Ayu accent and muted colors, adaptive to light and dark terminals.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
)

const notACommand = `Commands start with "octane". Type 'octane help' to list them, or 'exit' to quit.`

// Console reads one command per line and prints the replies.
type Console struct {
	in          io.Reader
	out         io.Writer
	user        string
	dispatcher  Dispatcher
	interactive bool

	mu     sync.Mutex
	name   lipgloss.Style
	muted  lipgloss.Style
	prompt lipgloss.Style
}

// New creates a console. Prompts are shown only when in is a terminal;
// colors only when out is.
func New(in io.Reader, out io.Writer, d Dispatcher, user string) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		in:          in,
		out:         out,
		user:        user,
		dispatcher:  d,
		interactive: isTerminal(in),
		name:        r.NewStyle().Bold(true).Foreground(colorAccent),
		muted:       r.NewStyle().Foreground(colorMuted),
		prompt:      r.NewStyle().Foreground(colorAccent),
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Run handles lines until the input ends, "exit" is typed or ctx is
// canceled.
func (c *Console) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if c.interactive {
		c.println(c.muted.Render(fmt.Sprintf("Talking to %s as %s. Type 'octane help' to list the commands.", c.dispatcher.BotName(), c.user)))
	}
	c.showPrompt()
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "exit", "quit":
			return nil
		default:
			text, _ := commands.StripAddress(line, c.dispatcher.BotName())
			if !c.dispatcher.Handle(ctx, commands.Message{User: c.user, Text: text}, c) {
				c.println(c.muted.Render(notACommand))
			}
		}
		c.showPrompt()
	}
	return scanner.Err()
}

func (c *Console) showPrompt() {
	if !c.interactive {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, c.prompt.Render(c.dispatcher.BotName()+"> "))
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Reply prints text addressed to the console user.
func (c *Console) Reply(text string) error {
	c.println(c.name.Render("@"+c.user) + " " + text)
	return nil
}

// Send prints text.
func (c *Console) Send(text string) error {
	c.println(text)
	return nil
}
