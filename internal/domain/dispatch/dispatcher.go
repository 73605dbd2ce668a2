package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"f451comms/internal/common"
)

// Options configures a Dispatcher.
type Options struct {
	// DefaultChannels is the channel token set used when a call supplies
	// none (the "channels" setting from the main configuration section).
	DefaultChannels []string

	// SuppressErrors makes per-channel failures non-raising globally: they
	// are still recorded in the Result, but Send returns a nil error.
	// A per-call "suppress_errors" attribute overrides this.
	SuppressErrors bool

	// Throttle, when set, is consulted before each channel attempt. A
	// throttle error fails open; a denial is recorded as that channel's
	// outcome.
	Throttle Throttle
}

// Dispatcher fans a single message out to one or more channels and
// aggregates the per-channel outcomes. It owns the registry and the adapter
// instances and is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	opts     Options
}

// NewDispatcher creates a Dispatcher over a fully populated registry.
func NewDispatcher(registry *Registry, opts Options) *Dispatcher {
	return &Dispatcher{registry: registry, opts: opts}
}

// Registry exposes the dispatcher's channel registry (read-only).
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Send delivers msg to every channel named by the given tokens and returns
// one outcome per attempted channel. Channels are attempted independently
// and exactly once each: a failure on one never prevents the others.
//
// An empty token set falls back to the configured default channels. Invalid
// call shapes (empty message, nothing resolvable) return a RequestError
// immediately with a nil Result. Otherwise Send always returns the full
// Result; unless suppression is requested it additionally returns a
// DeliveryError enumerating the failed channels, after all channels have
// been attempted.
func (d *Dispatcher) Send(ctx context.Context, msg *Message, channels []string, attribs map[string]any) (Result, error) {
	if msg.Empty() {
		return nil, common.NewRequestError("message body cannot be empty")
	}

	tokens := channels
	if len(tokens) == 0 {
		tokens = channelAttrib(attribs)
	}
	if len(tokens) == 0 {
		tokens = d.opts.DefaultChannels
	}
	if len(tokens) == 0 {
		return nil, common.NewRequestError("no channels requested and no default channels configured")
	}

	resolved, unknown := d.registry.Resolve(tokens)
	if len(resolved) == 0 && len(unknown) == 0 {
		return nil, common.NewRequestError("channel tokens resolve to zero channels")
	}
	if len(resolved) == 0 {
		return nil, common.NewRequestError(fmt.Sprintf("no known channels among: %v", unknown))
	}

	suppress := d.suppress(attribs)

	result := make(Result, len(resolved)+len(unknown))
	for _, token := range unknown {
		slog.Warn("unknown channel requested", "token", token)
		result[token] = Outcome{Channel: token, Err: common.NewUnknownChannelError(token)}
	}

	for _, ch := range resolved {
		result[string(ch)] = d.attempt(ctx, ch, msg, attribs)
	}

	if failed := result.Failed(); len(failed) > 0 && !suppress {
		sort.Strings(failed)
		return result, common.NewDeliveryError(failed)
	}
	return result, nil
}

// SendViaMailgun sends msg through the Mailgun email channel only.
func (d *Dispatcher) SendViaMailgun(ctx context.Context, msg *Message, attribs map[string]any) (Result, error) {
	return d.Send(ctx, msg, []string{string(ChannelMailgun)}, attribs)
}

// SendViaSlack sends msg through the Slack chat channel only.
func (d *Dispatcher) SendViaSlack(ctx context.Context, msg *Message, attribs map[string]any) (Result, error) {
	return d.Send(ctx, msg, []string{string(ChannelSlack)}, attribs)
}

// SendViaTwilio sends msg through the Twilio SMS channel only.
func (d *Dispatcher) SendViaTwilio(ctx context.Context, msg *Message, attribs map[string]any) (Result, error) {
	return d.Send(ctx, msg, []string{string(ChannelTwilio)}, attribs)
}

// SendViaTwitter sends msg through the Twitter social channel only.
func (d *Dispatcher) SendViaTwitter(ctx context.Context, msg *Message, attribs map[string]any) (Result, error) {
	return d.Send(ctx, msg, []string{string(ChannelTwitter)}, attribs)
}

// attempt runs one channel's normalize-then-send cycle, converting every
// failure mode (throttle denial, validation, provider error, panic) into an
// Outcome so sibling channels keep going.
func (d *Dispatcher) attempt(ctx context.Context, ch Channel, msg *Message, attribs map[string]any) (out Outcome) {
	out = Outcome{Channel: string(ch)}

	provider, ok := d.registry.Provider(ch)
	if !ok {
		out.Err = common.NewUnknownChannelError(string(ch))
		return out
	}

	if d.opts.Throttle != nil {
		allowed, err := d.opts.Throttle.Allow(ctx, string(ch))
		if err != nil {
			// Fail open: a broken throttle backend must not block delivery.
			slog.Error("dispatch throttle check failed, proceeding", "channel", ch, "error", err)
		} else if !allowed {
			out.Err = common.NewRateLimitedError(string(ch))
			return out
		}
	}

	attrs, err := Normalize(attribs, d.registry.Defaults(ch), provider.Schema(), ch)
	if err != nil {
		slog.Warn("attribute validation failed", "channel", ch, "error", err)
		out.Err = err
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter panicked", "channel", ch, "panic", r)
			out.Provider = nil
			out.Err = common.NewProviderError(string(ch), fmt.Sprintf("adapter panic: %v", r))
		}
	}()

	res, err := provider.Send(ctx, msg, attrs)
	if err != nil {
		slog.Warn("channel delivery failed", "channel", ch, "error", err)
		out.Err = err
		return out
	}

	slog.Info("channel delivery succeeded", "channel", ch, "provider", res.Provider, "message_id", res.MessageID)
	out.Provider = res
	return out
}

// channelAttrib reads the "channels" control attribute, the second way a
// caller can select channels when the explicit token list is empty.
func channelAttrib(attribs map[string]any) []string {
	raw, ok := attribs[KeyChannels]
	if !ok {
		return nil
	}
	tokens, err := toStringList(raw)
	if err != nil {
		slog.Warn("ignoring malformed channels attribute", "value", raw)
		return nil
	}
	return tokens
}

// suppress resolves the effective error-suppression setting for one call.
func (d *Dispatcher) suppress(attribs map[string]any) bool {
	if raw, ok := attribs[KeySuppressErrors]; ok {
		if b, err := ParseBool(raw); err == nil {
			return b
		}
		slog.Warn("ignoring malformed suppress_errors attribute", "value", raw)
	}
	return d.opts.SuppressErrors
}
