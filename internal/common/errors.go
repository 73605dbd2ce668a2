package common

import (
	"fmt"
	"strings"
)

// ConfigurationError indicates a channel could not be constructed from its
// configuration (missing or invalid credentials). The channel is simply
// absent from the registry; other channels are unaffected.
type ConfigurationError struct {
	Channel string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("channel %s not configured: %s", e.Channel, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(channel, message string) *ConfigurationError {
	return &ConfigurationError{Channel: channel, Message: message}
}

// UnknownChannelError indicates a requested channel token did not resolve to
// any configured channel.
type UnknownChannelError struct {
	Token string
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("unknown communications channel: %s", e.Token)
}

// NewUnknownChannelError creates a new UnknownChannelError.
func NewUnknownChannelError(token string) *UnknownChannelError {
	return &UnknownChannelError{Token: token}
}

// ValidationError indicates a message attribute is missing or malformed for
// a specific channel.
type ValidationError struct {
	Channel string
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Channel != "" && e.Key != "" {
		return fmt.Sprintf("%s: invalid attribute %q: %s", e.Channel, e.Key, e.Message)
	}
	return e.Message
}

// NewValidationError creates a new ValidationError scoped to a channel and key.
func NewValidationError(channel, key, message string) *ValidationError {
	return &ValidationError{Channel: channel, Key: key, Message: message}
}

// NewMissingAttributeError creates a ValidationError for a required attribute
// that is absent after merging call values with channel defaults.
func NewMissingAttributeError(channel, key string) *ValidationError {
	return &ValidationError{Channel: channel, Key: key, Message: "required attribute is missing"}
}

// ProviderError indicates an external service rejected or failed a request.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Message: message}
}

// WrapProviderError creates a ProviderError wrapping an underlying cause.
func WrapProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Message: err.Error(), Err: err}
}

// RateLimitedError indicates a channel's dispatch throttle denied the attempt.
type RateLimitedError struct {
	Channel string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("dispatch rate limit exceeded for channel %s", e.Channel)
}

// NewRateLimitedError creates a new RateLimitedError.
func NewRateLimitedError(channel string) *RateLimitedError {
	return &RateLimitedError{Channel: channel}
}

// RequestError indicates an invalid call shape (empty message body, no
// resolvable channels). It is raised immediately and never folded into
// per-channel outcomes.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// NewRequestError creates a new RequestError.
func NewRequestError(message string) *RequestError {
	return &RequestError{Message: message}
}

// DeliveryError aggregates per-channel failures after every selected channel
// has been attempted. It is returned alongside the full result set unless
// error suppression is requested.
type DeliveryError struct {
	Channels []string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("message delivery failed on channel(s): %s", strings.Join(e.Channels, ", "))
}

// NewDeliveryError creates a new DeliveryError for the given failed channels.
func NewDeliveryError(channels []string) *DeliveryError {
	return &DeliveryError{Channels: channels}
}

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found", e.Resource, e.ID)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// UnauthorizedError indicates missing or invalid authentication.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// NewUnauthorizedError creates a new UnauthorizedError.
func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}
