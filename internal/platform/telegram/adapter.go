// Package telegram adapts the Telegram Bot API to the platform interfaces.
// Each connection long-polls for updates and surfaces slash commands as
// interactions; chat count stands in for guild membership.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/botmux/internal/platform"
	"github.com/user/botmux/internal/types"
)

const maxMessageLength = 4096

// Client connects tenant credentials to the Telegram Bot API.
type Client struct{}

// NewClient creates a Telegram Client.
func NewClient() *Client {
	return &Client{}
}

// Connect authenticates the token and starts long-polling for updates.
func (c *Client) Connect(ctx context.Context, token string) (platform.Conn, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	conn := &Conn{
		bot: bot,
		identity: types.Identity{
			ID:       strconv.FormatInt(bot.Self.ID, 10),
			Username: bot.Self.UserName,
		},
		inters: make(chan platform.Interaction, 16),
		errs:   make(chan error, 4),
		chats:  make(map[int64]struct{}),
		done:   make(chan struct{}),
	}
	go conn.poll()
	return conn, nil
}

// Conn is one live long-polling connection.
type Conn struct {
	bot      *tgbotapi.BotAPI
	identity types.Identity
	inters   chan platform.Interaction
	errs     chan error

	mu    sync.Mutex
	chats map[int64]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

// Identity reports the authenticated bot account.
func (c *Conn) Identity() types.Identity { return c.identity }

// GuildCount reports the number of distinct chats seen on this connection.
func (c *Conn) GuildCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chats)
}

// Interactions delivers inbound command invocations. Closed on Close.
func (c *Conn) Interactions() <-chan platform.Interaction { return c.inters }

// Errs delivers transport errors. Closed on Close.
func (c *Conn) Errs() <-chan error { return c.errs }

// Close stops polling and closes both channels.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.bot.StopReceivingUpdates()
	})
	return nil
}

func (c *Conn) poll() {
	defer close(c.inters)
	defer close(c.errs)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			msg := update.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}
			c.mu.Lock()
			c.chats[msg.Chat.ID] = struct{}{}
			c.mu.Unlock()

			select {
			case c.inters <- &interaction{
				conn:    c,
				command: strings.ToLower(msg.Command()),
				userID:  strconv.FormatInt(msg.From.ID, 10),
				chatID:  msg.Chat.ID,
				fromID:  msg.From.ID,
			}:
			case <-c.done:
				return
			}
		case <-c.done:
			return
		}
	}
}

// interaction is one slash-command invocation in a chat.
type interaction struct {
	conn    *Conn
	command string
	userID  string
	chatID  int64
	fromID  int64
}

func (i *interaction) Command() string   { return i.command }
func (i *interaction) UserID() string    { return i.userID }
func (i *interaction) ChannelID() string { return strconv.FormatInt(i.chatID, 10) }

// Reply answers in the chat the command came from; a private reply goes to
// the invoker's direct chat instead.
func (i *interaction) Reply(text string, private bool) error {
	target := i.chatID
	if private {
		target = i.fromID
	}
	return i.conn.send(target, text)
}

// FollowUp sends an additional message to the originating chat.
func (i *interaction) FollowUp(text string) error {
	return i.conn.send(i.chatID, text)
}

func (c *Conn) send(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		if _, err := c.bot.Send(msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func splitMessage(text string) []string {
	if len(text) <= maxMessageLength {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxMessageLength
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

// Registrar replaces a bot's registered command list via SetMyCommands.
type Registrar struct{}

// NewRegistrar creates a Telegram Registrar.
func NewRegistrar() *Registrar {
	return &Registrar{}
}

// ReplaceCommands overwrites the bot's command menu with the given set.
func (r *Registrar) ReplaceCommands(ctx context.Context, _ types.Identity, token string, cmds []platform.CommandDescriptor) error {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	botCmds := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, cmd := range cmds {
		desc := cmd.Description
		if desc == "" {
			// Telegram rejects empty command descriptions.
			desc = cmd.Name
		}
		botCmds = append(botCmds, tgbotapi.BotCommand{
			Command:     cmd.Name,
			Description: desc,
		})
	}

	if _, err := bot.Request(tgbotapi.NewSetMyCommands(botCmds...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}
