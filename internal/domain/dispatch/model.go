package dispatch

// Channel identifies a configured delivery channel.
type Channel string

const (
	ChannelMailgun Channel = "f451_mailgun"
	ChannelSlack   Channel = "f451_slack"
	ChannelTwilio  Channel = "f451_twilio"
	ChannelTwitter Channel = "f451_twitter"

	// ChannelAll is the wildcard token that expands to every configured
	// channel in configuration order.
	ChannelAll = "all"
)

// ServiceType groups channels by the kind of service behind them.
type ServiceType string

const (
	ServiceEmail  ServiceType = "email"
	ServiceChat   ServiceType = "chat"
	ServiceSMS    ServiceType = "sms"
	ServiceSocial ServiceType = "social"
)

// Message is the payload for a single dispatch call. Text is the plain-text
// body and is always required. HTML is an optional secondary representation
// used by email channels; Blocks is an optional block-structured
// representation used by chat channels. A Message is never mutated after
// construction.
type Message struct {
	Text   string
	HTML   string
	Blocks []map[string]any
}

// Empty reports whether the message carries no content at all.
func (m *Message) Empty() bool {
	return m == nil || (m.Text == "" && len(m.Blocks) == 0)
}

// ProviderResult is the provider-defined success payload for one channel.
type ProviderResult struct {
	Provider  string         `json:"provider"`
	MessageID string         `json:"message_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Outcome is the result of one channel's single delivery attempt.
type Outcome struct {
	Channel  string
	Provider *ProviderResult
	Err      error
}

// OK reports whether this channel's attempt succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result maps each attempted channel token to its outcome. Tokens that did
// not resolve to a configured channel appear under their original spelling
// with an UnknownChannelError outcome.
type Result map[string]Outcome

// OK reports whether at least one channel succeeded.
func (r Result) OK() bool {
	for _, o := range r {
		if o.OK() {
			return true
		}
	}
	return false
}

// Succeeded returns the channels that delivered successfully.
func (r Result) Succeeded() []string {
	var out []string
	for ch, o := range r {
		if o.OK() {
			out = append(out, ch)
		}
	}
	return out
}

// Failed returns the channels whose attempt failed.
func (r Result) Failed() []string {
	var out []string
	for ch, o := range r {
		if !o.OK() {
			out = append(out, ch)
		}
	}
	return out
}
