package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"f451comms/internal/common"
	"f451comms/internal/domain/dispatch"
)

var _ dispatch.Provider = (*TwilioProvider)(nil)

const (
	defaultBaseURL = "https://api.twilio.com/2010-04-01"

	// Each recipient is an individual API call, so the list is capped to
	// keep one dispatch from turning into a send storm.
	maxRecipients = 10
)

// TwilioProvider sends SMS and MMS through the Twilio messages API. Twilio
// has no batch endpoint, so multi-recipient dispatches loop one call per
// number.
type TwilioProvider struct {
	accountSID string
	authToken  string
	fromPhone  string
	baseURL    string
	httpClient *http.Client
}

// NewTwilioProvider creates a new Twilio SMS adapter. It only validates
// credential shape; no network call is made until the first Send.
func NewTwilioProvider(accountSID, authToken, fromPhone string) (*TwilioProvider, error) {
	if accountSID == "" || authToken == "" {
		return nil, common.NewConfigurationError(string(dispatch.ChannelTwilio), "missing account SID or auth token")
	}
	if !dispatch.ValidPhone(dispatch.CleanPhone(fromPhone)) {
		return nil, common.NewConfigurationError(string(dispatch.ChannelTwilio), "sender phone number is not E.164")
	}
	return &TwilioProvider{
		accountSID: accountSID,
		authToken:  authToken,
		fromPhone:  dispatch.CleanPhone(fromPhone),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Channel returns the SMS channel identifier.
func (p *TwilioProvider) Channel() dispatch.Channel {
	return dispatch.ChannelTwilio
}

// Service returns the service type behind this adapter.
func (p *TwilioProvider) Service() dispatch.ServiceType {
	return dispatch.ServiceSMS
}

// Schema declares the attributes the Twilio adapter accepts.
func (p *TwilioProvider) Schema() dispatch.Schema {
	return dispatch.Schema{
		{Key: dispatch.KeyToPhone, Kind: dispatch.KindStringList, Required: true},
		{Key: dispatch.KeyMedia, Kind: dispatch.KindStringList},
	}
}

// Send delivers the message to each recipient number in turn. Recipients are
// independent: one rejected number does not stop the rest. Send fails only
// when no recipient could be reached.
func (p *TwilioProvider) Send(ctx context.Context, msg *dispatch.Message, attribs dispatch.AttribSet) (*dispatch.ProviderResult, error) {
	recipients := dispatch.NormalizePhoneList(attribs.List(dispatch.KeyToPhone), maxRecipients)
	if len(recipients) == 0 {
		return nil, common.NewValidationError(string(dispatch.ChannelTwilio), dispatch.KeyToPhone, "no valid recipient numbers")
	}

	media := attribs.List(dispatch.KeyMedia)

	var sids []string
	var failures []string
	for _, to := range recipients {
		sid, err := p.sendOne(ctx, to, msg.Text, media)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", to, err))
			continue
		}
		sids = append(sids, sid)
	}

	if len(sids) == 0 {
		return nil, common.NewProviderError("twilio", strings.Join(failures, "; "))
	}

	result := &dispatch.ProviderResult{
		Provider:  "twilio",
		MessageID: sids[0],
		Detail:    map[string]any{"sent": len(sids)},
	}
	if len(failures) > 0 {
		result.Detail["failed"] = failures
	}
	return result, nil
}

// sendOne performs a single messages API call and returns the message SID.
func (p *TwilioProvider) sendOne(ctx context.Context, to, body string, media []string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", p.fromPhone)
	form.Set("Body", body)
	for _, m := range media {
		form.Add("MediaUrl", m)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", p.baseURL, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		detail := errResp.Message
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("twilio: %s", detail)
	}

	var successResp struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	// Twilio can accept the request yet mark the message dead on arrival.
	switch successResp.Status {
	case "failed", "undelivered":
		return "", fmt.Errorf("twilio: message %s status %s", successResp.SID, successResp.Status)
	}

	return successResp.SID, nil
}
