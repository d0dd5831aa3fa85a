package slackbot

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/octanebot/octanebot/internal/commands"
)

// responder posts replies to the conversation a message came from. Replies
// in channels mention the sender; replies in threads stay in the thread.
type responder struct {
	client  SlackAPI
	channel string
	user    string
	thread  string
	direct  bool
}

func (r *responder) Reply(text string) error {
	if !r.direct {
		text = fmt.Sprintf("<@%s> %s", r.user, text)
	}
	return r.post(slack.MsgOptionText(text, false))
}

func (r *responder) Send(text string) error {
	return r.post(slack.MsgOptionText(text, false))
}

func (r *responder) SendCard(card commands.Card) error {
	return r.post(slack.MsgOptionAttachments(Attachment(card)))
}

func (r *responder) post(options ...slack.MsgOption) error {
	if r.thread != "" {
		options = append(options, slack.MsgOptionTS(r.thread))
	}
	_, _, err := r.client.PostMessage(r.channel, options...)
	if err != nil {
		return fmt.Errorf("post to %s: %w", r.channel, err)
	}
	return nil
}

// Attachment converts a card to a Slack message attachment.
func Attachment(card commands.Card) slack.Attachment {
	att := slack.Attachment{
		Color:    card.Color,
		Title:    card.Title,
		Fallback: card.Fallback,
	}
	for _, f := range card.Fields {
		att.Fields = append(att.Fields, slack.AttachmentField{
			Title: f.Title,
			Value: f.Value,
			Short: f.Short,
		})
	}
	if len(card.Markdown) > 0 {
		att.MarkdownIn = []string{"fields"}
	}
	return att
}
