package dispatch

// Attribute keywords shared between configuration defaults and per-call
// attribute maps. These mirror the keys used in the per-channel sections of
// the configuration file.
const (
	KeyToEmail       = "to_email"
	KeyCcEmail       = "cc_email"
	KeyBccEmail      = "bcc_email"
	KeySubject       = "subject"
	KeyTags          = "tags"
	KeyRecipientData = "recipient_data"
	KeyAttachments   = "attachments"
	KeyInline        = "inline"
	KeyTracking      = "tracking"
	KeyTestmode      = "testmode"

	KeyToChannel = "to_channel"
	KeyIconEmoji = "icon_emoji"
	KeyFileTitle = "file_title"

	KeyToPhone = "to_phone"
	KeyMedia   = "media"

	KeyToTwitter = "to_twitter"
	KeyMethodDM  = "method_dm"

	// Control keys understood by the dispatcher itself rather than by any
	// single adapter.
	KeyChannels       = "channels"
	KeySuppressErrors = "suppress_errors"
)

// controlKeys are attribute names consumed by the dispatcher before
// normalization; they are never handed to adapters.
var controlKeys = map[string]bool{
	KeyChannels:       true,
	KeySuppressErrors: true,
}

// recognizedKeys is the union of every attribute keyword any adapter
// declares. A caller-supplied key outside this set is rejected outright; a
// key inside the set but absent from the targeted adapter's schema is simply
// skipped for that channel (it belongs to a sibling channel in the same
// dispatch).
var recognizedKeys = map[string]bool{
	KeyToEmail:       true,
	KeyCcEmail:       true,
	KeyBccEmail:      true,
	KeySubject:       true,
	KeyTags:          true,
	KeyRecipientData: true,
	KeyAttachments:   true,
	KeyInline:        true,
	KeyTracking:      true,
	KeyTestmode:      true,
	KeyToChannel:     true,
	KeyIconEmoji:     true,
	KeyFileTitle:     true,
	KeyToPhone:       true,
	KeyMedia:         true,
	KeyToTwitter:     true,
	KeyMethodDM:      true,
}
