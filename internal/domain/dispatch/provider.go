package dispatch

import "context"

// Provider is the contract every channel adapter implements.
// Implementations live in infra/ (Mailgun for email, Slack for chat, Twilio
// for SMS, Twitter for social updates). An adapter holds only its bound
// credentials; it carries no mutable state across calls and may be shared
// freely between concurrent dispatches.
type Provider interface {
	// Channel returns the canonical channel identifier this adapter serves.
	Channel() Channel

	// Service returns the kind of service behind the adapter.
	Service() ServiceType

	// Schema declares the attributes the adapter accepts. The normalizer
	// validates and types every attribute against this declaration before
	// Send is invoked.
	Schema() Schema

	// Send performs one delivery attempt. Attachment and media attributes
	// are filesystem paths the adapter resolves and reads itself; the
	// dispatch core never opens files.
	Send(ctx context.Context, msg *Message, attribs AttribSet) (*ProviderResult, error)
}

// Throttle limits how often a channel may be dispatched to. Implementations
// live in infra/ratelimit/. A nil Throttle means unlimited.
type Throttle interface {
	// Allow reports whether a dispatch to the given channel may proceed.
	Allow(ctx context.Context, channel string) (bool, error)
}
