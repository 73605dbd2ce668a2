package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dghubble/oauth1"

	"f451comms/internal/common"
	"f451comms/internal/domain/dispatch"
)

var _ dispatch.Provider = (*TwitterProvider)(nil)

const (
	defaultBaseURL   = "https://api.twitter.com/1.1"
	defaultUploadURL = "https://upload.twitter.com/1.1"

	maxStatusLength = 280
	maxDMLength     = 10000
	maxDMRecipients = 10
)

// mediaFormats are the image types the media upload endpoint accepts.
var mediaFormats = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// TwitterProvider posts status updates and direct messages through the
// Twitter v1.1 API, signing requests with OAuth 1.0a user credentials.
type TwitterProvider struct {
	baseURL    string
	uploadURL  string
	httpClient *http.Client
}

// NewTwitterProvider creates a new Twitter social adapter. It only validates
// credential shape; no network call is made until the first Send.
func NewTwitterProvider(userKey, userSecret, authToken, authSecret string) (*TwitterProvider, error) {
	if userKey == "" || userSecret == "" || authToken == "" || authSecret == "" {
		return nil, common.NewConfigurationError(string(dispatch.ChannelTwitter), "missing OAuth credentials")
	}

	oauthConfig := oauth1.NewConfig(userKey, userSecret)
	token := oauth1.NewToken(authToken, authSecret)
	client := oauthConfig.Client(oauth1.NoContext, token)
	client.Timeout = 30 * time.Second

	return &TwitterProvider{
		baseURL:    defaultBaseURL,
		uploadURL:  defaultUploadURL,
		httpClient: client,
	}, nil
}

// Channel returns the social channel identifier.
func (p *TwitterProvider) Channel() dispatch.Channel {
	return dispatch.ChannelTwitter
}

// Service returns the service type behind this adapter.
func (p *TwitterProvider) Service() dispatch.ServiceType {
	return dispatch.ServiceSocial
}

// Schema declares the attributes the Twitter adapter accepts.
func (p *TwitterProvider) Schema() dispatch.Schema {
	return dispatch.Schema{
		{Key: dispatch.KeyToTwitter, Kind: dispatch.KindStringList},
		{Key: dispatch.KeyTags, Kind: dispatch.KindStringList},
		{Key: dispatch.KeyMethodDM, Kind: dispatch.KindBool},
		{Key: dispatch.KeyMedia, Kind: dispatch.KindStringList},
	}
}

// Send posts a status update, or direct messages when the method_dm
// attribute is set. Status updates append configured tags as hashtags and
// upload any media files first.
func (p *TwitterProvider) Send(ctx context.Context, msg *dispatch.Message, attribs dispatch.AttribSet) (*dispatch.ProviderResult, error) {
	if attribs.Bool(dispatch.KeyMethodDM) {
		return p.sendDMs(ctx, msg.Text, attribs)
	}
	return p.sendStatus(ctx, msg.Text, attribs)
}

// sendStatus posts one status update with optional hashtags and media.
func (p *TwitterProvider) sendStatus(ctx context.Context, text string, attribs dispatch.AttribSet) (*dispatch.ProviderResult, error) {
	status := text
	if hashtags := dispatch.FormatTagList(attribs.List(dispatch.KeyTags), "#", "", " "); hashtags != "" {
		status = status + " " + hashtags
	}
	if utf8.RuneCountInString(status) > maxStatusLength {
		return nil, common.NewValidationError(string(dispatch.ChannelTwitter), "status",
			fmt.Sprintf("status exceeds %d characters", maxStatusLength))
	}

	var mediaIDs []string
	for _, path := range attribs.List(dispatch.KeyMedia) {
		id, err := p.uploadMedia(ctx, path)
		if err != nil {
			return nil, err
		}
		mediaIDs = append(mediaIDs, id)
	}

	form := url.Values{}
	form.Set("status", status)
	if len(mediaIDs) > 0 {
		form.Set("media_ids", strings.Join(mediaIDs, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/statuses/update.json", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, common.WrapProviderError("twitter", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tweet struct {
		IDStr string `json:"id_str"`
	}
	if err := p.call(req, &tweet); err != nil {
		return nil, err
	}

	result := &dispatch.ProviderResult{Provider: "twitter", MessageID: tweet.IDStr}
	if len(mediaIDs) > 0 {
		result.Detail = map[string]any{"media": len(mediaIDs)}
	}
	return result, nil
}

// sendDMs sends the message as a direct message to each recipient handle.
// Like SMS, recipients are independent and Send fails only when none could
// be reached.
func (p *TwitterProvider) sendDMs(ctx context.Context, text string, attribs dispatch.AttribSet) (*dispatch.ProviderResult, error) {
	handles := dispatch.NormalizeHandleList(attribs.List(dispatch.KeyToTwitter), maxDMRecipients)
	if len(handles) == 0 {
		return nil, common.NewValidationError(string(dispatch.ChannelTwitter), dispatch.KeyToTwitter, "no valid recipient handles")
	}
	if utf8.RuneCountInString(text) > maxDMLength {
		return nil, common.NewValidationError(string(dispatch.ChannelTwitter), "message",
			fmt.Sprintf("direct message exceeds %d characters", maxDMLength))
	}

	var sent []string
	var failures []string
	for _, handle := range handles {
		if err := p.sendOneDM(ctx, handle, text); err != nil {
			failures = append(failures, fmt.Sprintf("@%s: %v", handle, err))
			continue
		}
		sent = append(sent, handle)
	}

	if len(sent) == 0 {
		return nil, common.NewProviderError("twitter", strings.Join(failures, "; "))
	}

	result := &dispatch.ProviderResult{
		Provider: "twitter",
		Detail:   map[string]any{"sent": len(sent)},
	}
	if len(failures) > 0 {
		result.Detail["failed"] = failures
	}
	return result, nil
}

// sendOneDM resolves a handle to its user ID and delivers one direct message.
func (p *TwitterProvider) sendOneDM(ctx context.Context, handle, text string) error {
	lookupURL := fmt.Sprintf("%s/users/show.json?screen_name=%s", p.baseURL, url.QueryEscape(handle))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return err
	}

	var user struct {
		IDStr string `json:"id_str"`
	}
	if err := p.call(req, &user); err != nil {
		return err
	}

	payload := map[string]any{
		"event": map[string]any{
			"type": "message_create",
			"message_create": map[string]any{
				"target":       map[string]any{"recipient_id": user.IDStr},
				"message_data": map[string]any{"text": text},
			},
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/direct_messages/events/new.json", bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return p.call(req, &struct{}{})
}

// uploadMedia pushes one local image to the media endpoint and returns its
// media ID.
func (p *TwitterProvider) uploadMedia(ctx context.Context, path string) (string, error) {
	if !mediaFormats[strings.ToLower(filepath.Ext(path))] {
		return "", common.NewValidationError(string(dispatch.ChannelTwitter), dispatch.KeyMedia,
			fmt.Sprintf("unsupported media format: %s", filepath.Base(path)))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", common.NewValidationError(string(dispatch.ChannelTwitter), dispatch.KeyMedia,
			fmt.Sprintf("cannot read %s: %v", path, err))
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", common.WrapProviderError("twitter", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", common.WrapProviderError("twitter", err)
	}
	if err := w.Close(); err != nil {
		return "", common.WrapProviderError("twitter", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL+"/media/upload.json", &body)
	if err != nil {
		return "", common.WrapProviderError("twitter", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var media struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := p.call(req, &media); err != nil {
		return "", err
	}
	return media.MediaIDString, nil
}

// call executes a signed request and decodes the JSON response into out.
func (p *TwitterProvider) call(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return common.WrapProviderError("twitter", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return common.WrapProviderError("twitter", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Errors []struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			} `json:"errors"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		detail := fmt.Sprintf("status %d", resp.StatusCode)
		if len(errResp.Errors) > 0 {
			detail = errResp.Errors[0].Message
		}
		return common.NewProviderError("twitter", detail)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return common.WrapProviderError("twitter", fmt.Errorf("parsing response: %w", err))
	}
	return nil
}
