package dispatch

import (
	"fmt"
	"strings"
)

// Registry maps canonical channel identifiers to constructed provider
// adapters, together with each channel's configured default attributes and
// the caller-facing alias table. It is populated once at startup and
// read-only afterwards, so it is safe to share across concurrent dispatches
// without locking.
type Registry struct {
	order     []Channel
	providers map[Channel]Provider
	defaults  map[Channel]map[string]string
	aliases   map[string]Channel
}

// NewRegistry creates an empty registry with the given alias table
// (caller-chosen token -> canonical channel identifier). The alias map may
// be nil.
func NewRegistry(aliases map[string]string) *Registry {
	r := &Registry{
		providers: make(map[Channel]Provider),
		defaults:  make(map[Channel]map[string]string),
		aliases:   make(map[string]Channel, len(aliases)),
	}
	for from, to := range aliases {
		r.aliases[from] = Channel(to)
	}
	return r
}

// Register adds a constructed adapter and its channel's default attribute
// values. Registration order defines the expansion order of the "all" token.
func (r *Registry) Register(p Provider, defaults map[string]string) error {
	ch := p.Channel()
	if _, exists := r.providers[ch]; exists {
		return fmt.Errorf("channel %s already registered", ch)
	}
	r.order = append(r.order, ch)
	r.providers[ch] = p
	r.defaults[ch] = defaults
	return nil
}

// Channels returns every registered channel in registration order.
func (r *Registry) Channels() []Channel {
	out := make([]Channel, len(r.order))
	copy(out, r.order)
	return out
}

// Provider returns the adapter bound to the given canonical channel.
func (r *Registry) Provider(ch Channel) (Provider, bool) {
	p, ok := r.providers[ch]
	return p, ok
}

// Defaults returns the configured default attribute values for a channel.
func (r *Registry) Defaults(ch Channel) map[string]string {
	return r.defaults[ch]
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	out := make(map[string]string, len(r.aliases))
	for from, to := range r.aliases {
		out[from] = string(to)
	}
	return out
}

// Resolve maps caller-supplied channel tokens to registered channels.
// Each token may itself be pipe-delimited; the literal "all" expands to
// every registered channel in registration order. Alias lookup happens
// before validation. Resolution preserves caller order and collapses
// duplicates to their first occurrence. Tokens that resolve to no
// registered channel are returned separately under their original spelling;
// they never abort resolution of the remaining tokens.
func (r *Registry) Resolve(tokens []string) (channels []Channel, unknown []string) {
	seen := make(map[Channel]bool)
	for _, token := range tokens {
		for _, t := range SplitList(token) {
			if strings.EqualFold(t, ChannelAll) {
				for _, ch := range r.order {
					if !seen[ch] {
						seen[ch] = true
						channels = append(channels, ch)
					}
				}
				continue
			}

			ch := Channel(t)
			if mapped, ok := r.aliases[t]; ok {
				ch = mapped
			}
			if _, ok := r.providers[ch]; !ok {
				unknown = append(unknown, t)
				continue
			}
			if !seen[ch] {
				seen[ch] = true
				channels = append(channels, ch)
			}
		}
	}
	return channels, unknown
}
