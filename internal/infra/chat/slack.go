package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"f451comms/internal/common"
	"f451comms/internal/domain/dispatch"
)

var _ dispatch.Provider = (*SlackProvider)(nil)

const defaultBaseURL = "https://slack.com/api"

// SlackProvider posts messages to Slack channels through the Web API.
type SlackProvider struct {
	authToken  string
	fromName   string
	baseURL    string
	httpClient *http.Client
}

// NewSlackProvider creates a new Slack chat adapter. It only validates
// credential shape; no network call is made until the first Send.
func NewSlackProvider(authToken, fromName string) (*SlackProvider, error) {
	if authToken == "" {
		return nil, common.NewConfigurationError(string(dispatch.ChannelSlack), "missing bot token")
	}
	return &SlackProvider{
		authToken:  authToken,
		fromName:   fromName,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Channel returns the chat channel identifier.
func (p *SlackProvider) Channel() dispatch.Channel {
	return dispatch.ChannelSlack
}

// Service returns the service type behind this adapter.
func (p *SlackProvider) Service() dispatch.ServiceType {
	return dispatch.ServiceChat
}

// Schema declares the attributes the Slack adapter accepts.
func (p *SlackProvider) Schema() dispatch.Schema {
	return dispatch.Schema{
		{Key: dispatch.KeyToChannel, Kind: dispatch.KindString, Required: true},
		{Key: dispatch.KeyIconEmoji, Kind: dispatch.KindString},
		{Key: dispatch.KeyAttachments, Kind: dispatch.KindStringList},
		{Key: dispatch.KeyFileTitle, Kind: dispatch.KindString, Freeform: true},
	}
}

// Send posts the message via chat.postMessage and uploads any attached files
// afterwards. The returned message ID is the Slack message timestamp.
func (p *SlackProvider) Send(ctx context.Context, msg *dispatch.Message, attribs dispatch.AttribSet) (*dispatch.ProviderResult, error) {
	channel := attribs.String(dispatch.KeyToChannel)

	payload := map[string]any{
		"channel": channel,
		"text":    msg.Text,
	}
	if p.fromName != "" {
		payload["username"] = p.fromName
	}
	if icon := attribs.String(dispatch.KeyIconEmoji); icon != "" {
		payload["icon_emoji"] = wrapEmoji(icon)
	}
	if len(msg.Blocks) > 0 {
		payload["blocks"] = msg.Blocks
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, common.WrapProviderError("slack", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat.postMessage", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, common.WrapProviderError("slack", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.authToken)

	apiResp, err := p.call(req)
	if err != nil {
		return nil, err
	}

	uploaded := 0
	for _, path := range attribs.List(dispatch.KeyAttachments) {
		if err := p.uploadFile(ctx, channel, path, attribs.String(dispatch.KeyFileTitle)); err != nil {
			return nil, err
		}
		uploaded++
	}

	result := &dispatch.ProviderResult{
		Provider:  "slack",
		MessageID: apiResp.TS,
		Detail:    map[string]any{"channel": channel},
	}
	if uploaded > 0 {
		result.Detail["files"] = uploaded
	}
	return result, nil
}

// slackResponse is the common envelope every Slack Web API method returns.
// Slack signals failure with ok=false and a 200 status, so the HTTP code
// alone is not enough.
type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
}

// call executes a prepared Slack API request and decodes the envelope.
func (p *SlackProvider) call(req *http.Request) (*slackResponse, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, common.WrapProviderError("slack", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return nil, common.WrapProviderError("slack", err)
	}

	if resp.StatusCode >= 400 {
		return nil, common.NewProviderError("slack", fmt.Sprintf("status %d", resp.StatusCode))
	}

	var apiResp slackResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, common.WrapProviderError("slack", fmt.Errorf("parsing response: %w", err))
	}
	if !apiResp.OK {
		return nil, common.NewProviderError("slack", apiResp.Error)
	}
	return &apiResp, nil
}

// uploadFile shares one local file into the target channel via files.upload.
func (p *SlackProvider) uploadFile(ctx context.Context, channel, path, title string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.NewValidationError(string(dispatch.ChannelSlack), dispatch.KeyAttachments, fmt.Sprintf("cannot read %s: %v", path, err))
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("channels", channel)
	if title != "" {
		_ = w.WriteField("title", title)
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return common.WrapProviderError("slack", err)
	}
	if _, err := part.Write(data); err != nil {
		return common.WrapProviderError("slack", err)
	}
	if err := w.Close(); err != nil {
		return common.WrapProviderError("slack", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/files.upload", &body)
	if err != nil {
		return common.WrapProviderError("slack", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.authToken)

	_, err = p.call(req)
	return err
}

// wrapEmoji ensures the emoji name carries its colon wrapping, so both
// "robot_face" and ":robot_face:" configure the same icon.
func wrapEmoji(name string) string {
	return ":" + strings.Trim(name, ": ") + ":"
}
