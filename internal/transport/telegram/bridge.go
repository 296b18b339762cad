// Package telegram is the outbound notification bridge. It delivers
// schedule lifecycle notices to per-schedule notify addresses and
// approval-request alerts to a fixed alert chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

type Config struct {
	Token       string
	AlertChatID int64
	// RatePerSec caps outbound sends. Telegram throttles bots around 30
	// messages per second globally; default 20.
	RatePerSec int
}

type Bridge struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
	lim *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Bridge, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	return &Bridge{
		cfg: cfg,
		log: log,
		bot: b,
		lim: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// SendNotice delivers a lifecycle notice to a notify address. Addresses
// are chat ids, optionally prefixed "telegram:".
func (b *Bridge) SendNotice(ctx context.Context, address, text string) error {
	chatID, err := parseAddress(address)
	if err != nil {
		return err
	}
	return b.send(ctx, chatID, text)
}

// SendAgentMessage relays an inter-agent message through the alert chat.
// The bridge has no per-agent inbox; the chat is the shared channel the
// operator watches.
func (b *Bridge) SendAgentMessage(ctx context.Context, fromAgentID, toAgentID, message string) error {
	if b.cfg.AlertChatID == 0 {
		return errors.New("no alert chat configured")
	}
	text := fmt.Sprintf("[%s -> %s] %s", fromAgentID, toAgentID, message)
	return b.send(ctx, b.cfg.AlertChatID, text)
}

// Alert delivers a structured title/body notification to the alert chat.
func (b *Bridge) Alert(ctx context.Context, title, body string) error {
	if b.cfg.AlertChatID == 0 {
		return errors.New("no alert chat configured")
	}
	return b.send(ctx, b.cfg.AlertChatID, title+"\n\n"+body)
}

func (b *Bridge) send(ctx context.Context, chatID int64, text string) error {
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range splitText(text, textLimit) {
		if err := b.lim.Wait(ctx); err != nil {
			return err
		}
		if _, err := b.bot.Send(chat, chunk); err != nil {
			return fmt.Errorf("telegram send to %d: %w", chatID, err)
		}
	}
	return nil
}

func parseAddress(address string) (int64, error) {
	s := strings.TrimSpace(strings.TrimPrefix(address, "telegram:"))
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid notify address %q: %w", address, err)
	}
	return id, nil
}

const textLimit = 4000

// splitText chops long messages into chunks Telegram will accept,
// preferring newline boundaries and avoiding tiny trailing chunks.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}
		chunk := strings.TrimRight(string(rs[start:end]), "\n")
		out = append(out, chunk)
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
