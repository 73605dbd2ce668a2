package social

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"f451comms/internal/common"
	"f451comms/internal/domain/dispatch"
)

const (
	statusURL = "https://api.twitter.com/1.1/statuses/update.json"
	lookupURL = "https://api.twitter.com/1.1/users/show.json"
	dmURL     = "https://api.twitter.com/1.1/direct_messages/events/new.json"
)

func newTestProvider(t *testing.T) *TwitterProvider {
	t.Helper()
	p, err := NewTwitterProvider("ck", "cs", "at", "as")
	require.NoError(t, err)

	httpmock.ActivateNonDefault(p.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return p
}

func normalize(t *testing.T, p *TwitterProvider, raw map[string]any) dispatch.AttribSet {
	t.Helper()
	attrs, err := dispatch.Normalize(raw, nil, p.Schema(), p.Channel())
	require.NoError(t, err)
	return attrs
}

func TestNewTwitterProvider_MissingCredentials(t *testing.T) {
	var cfgErr *common.ConfigurationError
	_, err := NewTwitterProvider("ck", "", "at", "as")
	assert.ErrorAs(t, err, &cfgErr)
}

func TestTwitterProvider_StatusUpdateWithHashtags(t *testing.T) {
	p := newTestProvider(t)

	var status string
	httpmock.RegisterResponder(http.MethodPost, statusURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			status = req.PostForm.Get("status")
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"id_str": "1234567890",
			})
		})

	attrs := normalize(t, p, map[string]any{
		dispatch.KeyTags: "golang|release",
	})

	result, err := p.Send(context.Background(), &dispatch.Message{Text: "v2.0 is out"}, attrs)
	require.NoError(t, err)

	assert.Equal(t, "twitter", result.Provider)
	assert.Equal(t, "1234567890", result.MessageID)
	assert.Equal(t, "v2.0 is out #golang #release", status)
}

func TestTwitterProvider_StatusTooLong(t *testing.T) {
	p := newTestProvider(t)

	attrs := normalize(t, p, nil)
	long := strings.Repeat("x", maxStatusLength+1)
	_, err := p.Send(context.Background(), &dispatch.Message{Text: long}, attrs)

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestTwitterProvider_StatusLengthCountsRunesNotBytes(t *testing.T) {
	// 150 two-byte characters is a 300-byte string but a valid tweet.
	p := newTestProvider(t)

	httpmock.RegisterResponder(http.MethodPost, statusURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
			"id_str": "42",
		}))

	accented := strings.Repeat("é", 150)
	attrs := normalize(t, p, nil)

	result, err := p.Send(context.Background(), &dispatch.Message{Text: accented}, attrs)
	require.NoError(t, err)
	assert.Equal(t, "42", result.MessageID)

	// The cap still binds at the rune count.
	tooLong := strings.Repeat("é", maxStatusLength+1)
	_, err = p.Send(context.Background(), &dispatch.Message{Text: tooLong}, attrs)
	var verr *common.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestTwitterProvider_DMLengthCountsRunesNotBytes(t *testing.T) {
	p := newTestProvider(t)

	httpmock.RegisterResponder(http.MethodGet, lookupURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"id_str": "7"}))
	httpmock.RegisterResponder(http.MethodPost, dmURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{}))

	attrs := normalize(t, p, map[string]any{
		dispatch.KeyToTwitter: "jane_doe",
		dispatch.KeyMethodDM:  true,
	})

	// 6000 two-byte characters exceed the cap in bytes but not in runes.
	msg := &dispatch.Message{Text: strings.Repeat("ü", 6000)}
	result, err := p.Send(context.Background(), msg, attrs)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Detail["sent"])

	msg = &dispatch.Message{Text: strings.Repeat("ü", maxDMLength+1)}
	_, err = p.Send(context.Background(), msg, attrs)
	var verr *common.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestTwitterProvider_HashtagsCountTowardLimit(t *testing.T) {
	p := newTestProvider(t)

	attrs := normalize(t, p, map[string]any{dispatch.KeyTags: "padding_tag"})
	almostFull := strings.Repeat("x", maxStatusLength-5)
	_, err := p.Send(context.Background(), &dispatch.Message{Text: almostFull}, attrs)

	var verr *common.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestTwitterProvider_DirectMessages(t *testing.T) {
	p := newTestProvider(t)

	httpmock.RegisterResponder(http.MethodGet, lookupURL,
		func(req *http.Request) (*http.Response, error) {
			handle := req.URL.Query().Get("screen_name")
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"id_str": "id_" + handle,
			})
		})

	var recipients []string
	httpmock.RegisterResponder(http.MethodPost, dmURL,
		func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)

			var payload struct {
				Event struct {
					MessageCreate struct {
						Target struct {
							RecipientID string `json:"recipient_id"`
						} `json:"target"`
						MessageData struct {
							Text string `json:"text"`
						} `json:"message_data"`
					} `json:"message_create"`
				} `json:"event"`
			}
			require.NoError(t, json.Unmarshal(body, &payload))
			recipients = append(recipients, payload.Event.MessageCreate.Target.RecipientID)
			assert.Equal(t, "psst", payload.Event.MessageCreate.MessageData.Text)

			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{})
		})

	attrs := normalize(t, p, map[string]any{
		dispatch.KeyToTwitter: "@jane_doe|john",
		dispatch.KeyMethodDM:  true,
	})

	result, err := p.Send(context.Background(), &dispatch.Message{Text: "psst"}, attrs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Detail["sent"])
	assert.Equal(t, []string{"id_jane_doe", "id_john"}, recipients)
}

func TestTwitterProvider_DMNoValidHandles(t *testing.T) {
	p := newTestProvider(t)

	attrs := normalize(t, p, map[string]any{
		dispatch.KeyToTwitter: "not-a-handle!",
		dispatch.KeyMethodDM:  true,
	})
	_, err := p.Send(context.Background(), &dispatch.Message{Text: "psst"}, attrs)

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, dispatch.KeyToTwitter, verr.Key)
}

func TestTwitterProvider_APIError(t *testing.T) {
	p := newTestProvider(t)

	httpmock.RegisterResponder(http.MethodPost, statusURL,
		httpmock.NewJsonResponderOrPanic(http.StatusForbidden, map[string]any{
			"errors": []map[string]any{{"message": "Status is a duplicate.", "code": 187}},
		}))

	attrs := normalize(t, p, nil)
	_, err := p.Send(context.Background(), &dispatch.Message{Text: "same again"}, attrs)

	var perr *common.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "duplicate")
}

func TestTwitterProvider_UnsupportedMediaFormat(t *testing.T) {
	p := newTestProvider(t)

	attrs := normalize(t, p, map[string]any{dispatch.KeyMedia: "notes.txt"})
	_, err := p.Send(context.Background(), &dispatch.Message{Text: "hi"}, attrs)

	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, dispatch.KeyMedia, verr.Key)
}
