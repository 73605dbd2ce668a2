package dispatch

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"f451comms/internal/common"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "f451_slack", []string{"f451_slack"}},
		{"multiple", "a|b|c", []string{"a", "b", "c"}},
		{"whitespace", " a | b |c ", []string{"a", "b", "c"}},
		{"empty_items", "a||b| |", []string{"a", "b"}},
		{"empty", "", nil},
		{"only_delimiters", "|||", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitList(tt.in)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitList_RoundTripIdempotent(t *testing.T) {
	// A caller-supplied list and its pipe-joined spelling normalize the same.
	fromString := SplitList("alpha|beta|gamma")
	fromList, err := toStringList([]string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, fromString, fromList)
}

func TestParseKeyValueMap(t *testing.T) {
	got := ParseKeyValueMap("email:f451_mailgun|sms:f451_twilio")
	assert.Equal(t, map[string]string{
		"email": "f451_mailgun",
		"sms":   "f451_twilio",
	}, got)
}

func TestParseKeyValueMap_SkipsMalformedPairs(t *testing.T) {
	got := ParseKeyValueMap("email:f451_mailgun|nonsense|:empty|blank:")
	assert.Equal(t, map[string]string{"email": "f451_mailgun"}, got)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "True", "1", "t", "y", "YES"} {
		got, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.True(t, got, s)
	}
	for _, s := range []string{"false", "0", "f", "n", "No", ""} {
		got, err := ParseBool(s)
		require.NoError(t, err, s)
		assert.False(t, got, s)
	}

	got, err := ParseBool(true)
	require.NoError(t, err)
	assert.True(t, got)

	_, err = ParseBool("maybe")
	assert.Error(t, err)

	_, err = ParseBool(3.14)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   any
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Warning", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"CRITICAL", slog.LevelError},
		{"NOTSET", slog.LevelDebug},
		{"OFF", LevelOff},
		{50, slog.LevelError},
		{40, slog.LevelError},
		{30, slog.LevelWarn},
		{20, slog.LevelInfo},
		{10, slog.LevelDebug},
		{0, slog.LevelDebug},
		{-1, LevelOff},
		{"30", slog.LevelWarn},
		{float64(40), slog.LevelError},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}

	_, err := ParseLogLevel("LOUD")
	assert.Error(t, err)
}

func testSchema() Schema {
	return Schema{
		{Key: KeyToEmail, Kind: KindStringList, Required: true},
		{Key: KeySubject, Kind: KindString, Freeform: true},
		{Key: KeyTags, Kind: KindStringList},
		{Key: KeyTracking, Kind: KindBool},
		{Key: KeyRecipientData, Kind: KindMap},
	}
}

func TestNormalize_CallValuesWinOverDefaults(t *testing.T) {
	defaults := map[string]string{
		KeyToEmail: "default@example.com",
		KeySubject: "default subject",
	}
	raw := map[string]any{
		KeyToEmail: "caller@example.com",
	}

	attrs, err := Normalize(raw, defaults, testSchema(), ChannelMailgun)
	require.NoError(t, err)

	assert.Equal(t, []string{"caller@example.com"}, attrs.List(KeyToEmail))
	assert.Equal(t, "default subject", attrs.String(KeySubject))
}

func TestNormalize_RequiredMissing(t *testing.T) {
	_, err := Normalize(map[string]any{}, nil, testSchema(), ChannelMailgun)
	require.Error(t, err)

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, string(ChannelMailgun), verr.Channel)
	assert.Equal(t, KeyToEmail, verr.Key)
}

func TestNormalize_RequiredEmptyAfterCoercion(t *testing.T) {
	// "| |" splits to nothing, which is as missing as an absent key.
	_, err := Normalize(map[string]any{KeyToEmail: "| |"}, nil, testSchema(), ChannelMailgun)

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KeyToEmail, verr.Key)
}

func TestNormalize_UnrecognizedKeyRejected(t *testing.T) {
	raw := map[string]any{
		KeyToEmail:    "a@example.com",
		"frobnicator": "on",
	}
	_, err := Normalize(raw, nil, testSchema(), ChannelMailgun)

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "frobnicator", verr.Key)
}

func TestNormalize_SiblingChannelKeySkipped(t *testing.T) {
	// to_phone belongs to the SMS adapter; an email normalization pass must
	// neither reject nor surface it.
	raw := map[string]any{
		KeyToEmail: "a@example.com",
		KeyToPhone: "+12125551234",
	}
	attrs, err := Normalize(raw, nil, testSchema(), ChannelMailgun)
	require.NoError(t, err)
	assert.False(t, attrs.Has(KeyToPhone))
}

func TestNormalize_ControlKeysSkipped(t *testing.T) {
	raw := map[string]any{
		KeyToEmail:        "a@example.com",
		KeySuppressErrors: true,
		KeyChannels:       "all",
	}
	attrs, err := Normalize(raw, nil, testSchema(), ChannelMailgun)
	require.NoError(t, err)
	assert.False(t, attrs.Has(KeySuppressErrors))
	assert.False(t, attrs.Has(KeyChannels))
}

func TestNormalize_FreeformNotSplit(t *testing.T) {
	raw := map[string]any{
		KeyToEmail: "a@example.com",
		KeySubject: "status: red | action required",
	}
	attrs, err := Normalize(raw, nil, testSchema(), ChannelMailgun)
	require.NoError(t, err)
	assert.Equal(t, "status: red | action required", attrs.String(KeySubject))
}

func TestNormalize_ListFromEverySpelling(t *testing.T) {
	for name, raw := range map[string]any{
		"piped_string": "a@x.com|b@x.com",
		"string_slice": []string{"a@x.com", "b@x.com"},
		"any_slice":    []any{"a@x.com", "b@x.com"},
	} {
		t.Run(name, func(t *testing.T) {
			attrs, err := Normalize(map[string]any{KeyToEmail: raw}, nil, testSchema(), ChannelMailgun)
			require.NoError(t, err)
			assert.Equal(t, []string{"a@x.com", "b@x.com"}, attrs.List(KeyToEmail))
		})
	}
}

func TestNormalize_TypeCoercion(t *testing.T) {
	raw := map[string]any{
		KeyToEmail:       "a@example.com",
		KeyTracking:      "yes",
		KeyRecipientData: map[string]any{"a@example.com": map[string]any{"id": float64(1)}},
	}
	attrs, err := Normalize(raw, nil, testSchema(), ChannelMailgun)
	require.NoError(t, err)
	assert.True(t, attrs.Bool(KeyTracking))
	assert.Contains(t, attrs.Map(KeyRecipientData), "a@example.com")
}

func TestNormalize_BadBoolValue(t *testing.T) {
	raw := map[string]any{
		KeyToEmail:  "a@example.com",
		KeyTracking: "perhaps",
	}
	_, err := Normalize(raw, nil, testSchema(), ChannelMailgun)

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KeyTracking, verr.Key)
}

func TestNormalize_EmptyDefaultIgnored(t *testing.T) {
	defaults := map[string]string{
		KeyToEmail: "a@example.com",
		KeyTags:    "",
	}
	attrs, err := Normalize(nil, defaults, testSchema(), ChannelMailgun)
	require.NoError(t, err)
	assert.False(t, attrs.Has(KeyTags))
}

func TestNormalize_KeysInSchemaOrder(t *testing.T) {
	raw := map[string]any{
		KeyTags:    "x|y",
		KeyToEmail: "a@example.com",
		KeySubject: "hi",
	}
	attrs, err := Normalize(raw, nil, testSchema(), ChannelMailgun)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyToEmail, KeySubject, KeyTags}, attrs.Keys())
}

func TestFormatTagList(t *testing.T) {
	assert.Equal(t, "#alpha #beta", FormatTagList([]string{"alpha", "beta"}, "#", "", " "))
	assert.Equal(t, "#alpha", FormatTagList([]string{"#alpha", ""}, "#", "", " "))
	assert.Equal(t, "", FormatTagList(nil, "#", "", " "))
}
