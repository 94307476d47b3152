package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"escalator/internal/channel"
	"escalator/internal/render"
)

// Slack error codes meaning the DM target is gone rather than Slack being down.
var staleHandleCodes = map[string]bool{
	"user_not_found":    true,
	"users_not_found":   true,
	"channel_not_found": true,
	"user_disabled":     true,
	"account_inactive":  true,
	"cannot_dm_bot":     true,
}

// Client is the chat channel: handle lookup by email and direct messages.
type Client struct {
	api *slack.Client
}

func NewClient(api *slack.Client) *Client {
	return &Client{api: api}
}

// LookupHandle maps an email to a Slack user ID via users.lookupByEmail.
func (c *Client) LookupHandle(ctx context.Context, email string) (string, error) {
	user, err := c.api.GetUserByEmailContext(ctx, email)
	if err != nil {
		if staleHandleCodes[slackErrorCode(err)] {
			return "", fmt.Errorf("lookup %s: %w", email, channel.ErrHandleNotFound)
		}
		return "", fmt.Errorf("lookup %s: %w", email, err)
	}
	if user == nil || user.ID == "" || user.Deleted {
		return "", fmt.Errorf("lookup %s: %w", email, channel.ErrHandleNotFound)
	}
	return user.ID, nil
}

// PostDM opens (or reuses) the DM conversation with handle and posts blocks,
// with fallback as the notification text.
func (c *Client) PostDM(ctx context.Context, handle string, blocks []slack.Block, fallback string) error {
	conv, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{handle},
	})
	if err != nil {
		return c.wrap("open DM", handle, err)
	}

	_, _, err = c.api.PostMessageContext(ctx, conv.ID,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(fallback, false),
	)
	if err != nil {
		return c.wrap("post DM", handle, err)
	}
	log.Printf("slack: DM sent user=%s channel=%s", handle, conv.ID)
	return nil
}

// Deliver renders m as Block Kit and sends it to handle.
func (c *Client) Deliver(ctx context.Context, handle string, m render.Message) error {
	return c.PostDM(ctx, handle, BuildBlocks(m), m.Text)
}

func (c *Client) wrap(op, handle string, err error) error {
	if staleHandleCodes[slackErrorCode(err)] {
		return fmt.Errorf("%s %s: %w: %v", op, handle, channel.ErrStaleHandle, err)
	}
	return fmt.Errorf("%s %s: %w", op, handle, err)
}

func slackErrorCode(err error) string {
	var serr slack.SlackErrorResponse
	if errors.As(err, &serr) {
		return serr.Err
	}
	return ""
}
