// Package confirm implements yes/no confirmation prompts answered through reactions
package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/botlabs-gg/bulkmod/common"
	"github.com/jonas747/discordgo/v2"
)

var logger = common.GetFixedPrefixLogger("confirm")

const (
	EmojiConfirm = "✅"
	EmojiDeny    = "❌"
)

type Answer int

const (
	AnswerDenied Answer = iota
	AnswerConfirmed
	AnswerTimedOut
)

// Session is the part of *discordgo.Session the prompts use
type Session interface {
	ChannelMessageSend(channelID int64, content string) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID int64, emoji string) error
	ChannelMessageDelete(channelID, messageID int64) error
}

// Menus keeps track of the active prompts and routes reactions to them
type Menus struct {
	session Session
	botID   int64

	mu     sync.Mutex
	active map[int64]*menu
}

func NewMenus(session Session, botID int64) *Menus {
	return &Menus{
		session: session,
		botID:   botID,
		active:  make(map[int64]*menu),
	}
}

type menu struct {
	userID int64
	answer chan Answer
	once   sync.Once
}

func (m *menu) resolve(a Answer) {
	m.once.Do(func() {
		m.answer <- a
	})
}

// Ask sends the question and blocks until userID reacts to it, timeout passes or ctx is done.
// The prompt message is deleted afterwards.
func (ms *Menus) Ask(ctx context.Context, channelID, userID int64, question string, timeout time.Duration) (Answer, error) {
	msg, err := ms.session.ChannelMessageSend(channelID, question)
	if err != nil {
		return AnswerDenied, err
	}

	m := &menu{
		userID: userID,
		answer: make(chan Answer, 1),
	}

	ms.mu.Lock()
	ms.active[msg.ID] = m
	ms.mu.Unlock()

	defer ms.teardown(channelID, msg.ID)

	for _, emoji := range []string{EmojiConfirm, EmojiDeny} {
		err = ms.session.MessageReactionAdd(channelID, msg.ID, emoji)
		if err != nil {
			return AnswerDenied, err
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case a := <-m.answer:
		return a, nil
	case <-t.C:
		return AnswerTimedOut, nil
	case <-ctx.Done():
		return AnswerDenied, ctx.Err()
	}
}

func (ms *Menus) teardown(channelID, messageID int64) {
	ms.mu.Lock()
	delete(ms.active, messageID)
	ms.mu.Unlock()

	err := ms.session.ChannelMessageDelete(channelID, messageID)
	if err != nil && !common.IsDiscordErr(err, discordgo.ErrCodeUnknownMessage) {
		logger.WithError(err).WithField("channel", channelID).Error("failed deleting confirmation prompt")
	}
}

// HandleReactionAdd resolves the prompt the reaction was added to, only the asked user's reactions count
func (ms *Menus) HandleReactionAdd(s *discordgo.Session, ra *discordgo.MessageReactionAdd) {
	if ra.UserID == ms.botID {
		return
	}

	ms.mu.Lock()
	m, ok := ms.active[ra.MessageID]
	ms.mu.Unlock()

	if !ok || ra.UserID != m.userID {
		return
	}

	switch ra.Emoji.Name {
	case EmojiConfirm:
		m.resolve(AnswerConfirmed)
	case EmojiDeny:
		m.resolve(AnswerDenied)
	}
}

// Stop denies every active prompt
func (ms *Menus) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, m := range ms.active {
		m.resolve(AnswerDenied)
	}
}
