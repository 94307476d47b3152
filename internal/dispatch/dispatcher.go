// Package dispatch fans a rendered message out to recipients over email and
// chat, isolating every delivery from the others.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"escalator/internal/channel"
	"escalator/internal/domain"
	"escalator/internal/metrics"
	"escalator/internal/render"
)

const (
	DefaultConcurrency = 8
	DefaultSendTimeout = 20 * time.Second
)

// ErrChatDisabled marks chat outcomes skipped because no chat sender is wired.
var ErrChatDisabled = errors.New("chat channel not configured")

type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type ChatSender interface {
	Deliver(ctx context.Context, handle string, m render.Message) error
}

type HandleResolver interface {
	Resolve(ctx context.Context, email string, ch domain.Channel) (string, error)
	Invalidate(ctx context.Context, email string, ch domain.Channel)
}

// Envelope pairs a recipient with the message rendered for them.
type Envelope struct {
	Recipient domain.Recipient
	Message   render.Message
}

type Dispatcher struct {
	email       EmailSender
	chat        ChatSender
	handles     HandleResolver
	concurrency int
	sendTimeout time.Duration
}

// New builds a Dispatcher. chat and handles may be nil, in which case every
// chat delivery is skipped with ErrChatDisabled.
func New(email EmailSender, chat ChatSender, handles HandleResolver, concurrency int, sendTimeout time.Duration) *Dispatcher {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		email:       email,
		chat:        chat,
		handles:     handles,
		concurrency: concurrency,
		sendTimeout: sendTimeout,
	}
}

// Send delivers the same message to every recipient on every channel.
func (d *Dispatcher) Send(ctx context.Context, msg render.Message, recipients []domain.Recipient, channels []domain.Channel) []domain.Outcome {
	envs := make([]Envelope, len(recipients))
	for i, r := range recipients {
		envs[i] = Envelope{Recipient: r, Message: msg}
	}
	return d.SendEach(ctx, envs, channels)
}

// SendEach delivers each envelope on every channel. It always waits for all
// attempts and returns one outcome per (envelope, channel) pair in input
// order; no attempt's failure cancels another.
func (d *Dispatcher) SendEach(ctx context.Context, envs []Envelope, channels []domain.Channel) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(envs)*len(channels))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, env := range envs {
		for j, ch := range channels {
			slot := i*len(channels) + j
			g.Go(func() error {
				outcomes[slot] = d.deliver(ctx, env, ch)
				return nil
			})
		}
	}
	_ = g.Wait()

	for _, o := range outcomes {
		metrics.Deliveries.WithLabelValues(string(o.Channel), string(o.Status)).Inc()
	}
	return outcomes
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope, ch domain.Channel) domain.Outcome {
	out := domain.Outcome{Recipient: env.Recipient, Channel: ch}
	if err := ctx.Err(); err != nil {
		return failed(out, err)
	}

	switch ch {
	case domain.ChannelEmail:
		return d.deliverEmail(ctx, env, out)
	case domain.ChannelChat:
		return d.deliverChat(ctx, env, out)
	default:
		return failed(out, fmt.Errorf("unknown channel %q", ch))
	}
}

func (d *Dispatcher) deliverEmail(ctx context.Context, env Envelope, out domain.Outcome) domain.Outcome {
	if env.Recipient.Email == "" {
		return skipped(out, "no email address")
	}
	if d.email == nil {
		return skipped(out, "email channel not configured")
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.email.Send(sendCtx, env.Recipient.Email, env.Message.Subject, env.Message.HTML); err != nil {
		log.Printf("dispatch: email to=%s subject=%q failed: %v", env.Recipient.Email, env.Message.Subject, err)
		return failed(out, err)
	}
	out.Status = domain.DeliverySent
	return out
}

func (d *Dispatcher) deliverChat(ctx context.Context, env Envelope, out domain.Outcome) domain.Outcome {
	if d.chat == nil || d.handles == nil {
		return skipped(out, ErrChatDisabled.Error())
	}
	if env.Recipient.Email == "" {
		return skipped(out, "no email address to bind")
	}

	handle, err := d.handles.Resolve(ctx, env.Recipient.Email, domain.ChannelChat)
	if err != nil {
		if errors.Is(err, channel.ErrHandleNotFound) {
			return skipped(out, "no chat handle")
		}
		return failed(out, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	if err := d.chat.Deliver(sendCtx, handle, env.Message); err != nil {
		if errors.Is(err, channel.ErrStaleHandle) {
			d.handles.Invalidate(ctx, env.Recipient.Email, domain.ChannelChat)
		}
		log.Printf("dispatch: chat to=%s handle=%s failed: %v", env.Recipient.Email, handle, err)
		return failed(out, err)
	}
	out.Status = domain.DeliverySent
	return out
}

func skipped(out domain.Outcome, reason string) domain.Outcome {
	out.Status = domain.DeliverySkipped
	out.Reason = reason
	return out
}

func failed(out domain.Outcome, err error) domain.Outcome {
	out.Status = domain.DeliveryFailed
	out.Reason = err.Error()
	out.Err = err
	return out
}
