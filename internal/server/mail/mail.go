// Package mail composes the server's outgoing messages and delivers them.
//
// The reference server has no SMTP relay; LogMailer writes each message to
// the log and keeps a copy for inspection.
package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer logs messages instead of delivering them.
type LogMailer struct {
	log logging.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()

	m.log.Info(ctx, "mail", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// Sent returns a copy of every message sent so far.
func (m *LogMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// Last returns the latest message sent to addr.
func (m *LogMailer) Last(addr string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == addr {
			return m.sent[i], true
		}
	}
	return Message{}, false
}

func VerificationCode(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Verify your email",
		Body:    fmt.Sprintf("Your verification code is %s. It expires in %s.", code, ttl),
	}
}

func LoginCode(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your login code",
		Body:    fmt.Sprintf("Your one-time login code is %s. It expires in %s.", code, ttl),
	}
}

func RecoveryCode(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Your password reset code is %s. It expires in %s.", code, ttl),
	}
}

func CapsuleCreated(to, title string, unlockAt time.Time) Message {
	return Message{
		To:      to,
		Subject: "A time capsule was sealed",
		Body: fmt.Sprintf("The capsule %q is sealed until %s.",
			title, unlockAt.UTC().Format("2006-01-02 15:04 MST")),
	}
}

func UnlockReminder(to, title string, unlockAt, now time.Time) Message {
	return Message{
		To:      to,
		Subject: "A time capsule opens soon",
		Body: fmt.Sprintf("The capsule %q opens %s, at %s.",
			title, humanize.RelTime(unlockAt, now, "ago", "from now"), unlockAt.UTC().Format("2006-01-02 15:04 MST")),
	}
}
