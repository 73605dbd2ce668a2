package email

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
	"unicode/utf8"

	"f451comms/internal/common"
	"f451comms/internal/domain/dispatch"
)

var _ dispatch.Provider = (*MailgunProvider)(nil)

const (
	defaultBaseURL = "https://api.mailgun.net/v3"

	// Mailgun accepts at most 1000 recipients per message and 3 tags of up
	// to 128 ASCII characters each.
	maxRecipients = 1000
	maxTags       = 3
	maxTagLength  = 128
)

// MailgunProvider sends email through the Mailgun messages API.
type MailgunProvider struct {
	apiKey     string
	fromDomain string
	fromName   string
	baseURL    string
	httpClient *http.Client
}

// NewMailgunProvider creates a new Mailgun email adapter. It only validates
// credential shape; no network call is made until the first Send.
func NewMailgunProvider(apiKey, fromDomain, fromName string) (*MailgunProvider, error) {
	if apiKey == "" {
		return nil, common.NewConfigurationError(string(dispatch.ChannelMailgun), "missing API key")
	}
	if fromDomain == "" {
		return nil, common.NewConfigurationError(string(dispatch.ChannelMailgun), "missing sender domain")
	}
	return &MailgunProvider{
		apiKey:     apiKey,
		fromDomain: fromDomain,
		fromName:   fromName,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Channel returns the email channel identifier.
func (p *MailgunProvider) Channel() dispatch.Channel {
	return dispatch.ChannelMailgun
}

// Service returns the service type behind this adapter.
func (p *MailgunProvider) Service() dispatch.ServiceType {
	return dispatch.ServiceEmail
}

// Schema declares the attributes the Mailgun adapter accepts.
func (p *MailgunProvider) Schema() dispatch.Schema {
	return dispatch.Schema{
		{Key: dispatch.KeyToEmail, Kind: dispatch.KindStringList, Required: true},
		{Key: dispatch.KeyCcEmail, Kind: dispatch.KindStringList},
		{Key: dispatch.KeyBccEmail, Kind: dispatch.KindStringList},
		{Key: dispatch.KeySubject, Kind: dispatch.KindString, Freeform: true},
		{Key: dispatch.KeyTags, Kind: dispatch.KindStringList},
		{Key: dispatch.KeyRecipientData, Kind: dispatch.KindMap},
		{Key: dispatch.KeyAttachments, Kind: dispatch.KindStringList},
		{Key: dispatch.KeyInline, Kind: dispatch.KindStringList},
		{Key: dispatch.KeyTracking, Kind: dispatch.KindBool},
		{Key: dispatch.KeyTestmode, Kind: dispatch.KindBool},
	}
}

// Send delivers one email via the Mailgun messages endpoint and returns the
// queued message ID.
func (p *MailgunProvider) Send(ctx context.Context, msg *dispatch.Message, attribs dispatch.AttribSet) (*dispatch.ProviderResult, error) {
	to := dispatch.NormalizeEmailList(attribs.List(dispatch.KeyToEmail), maxRecipients)
	if len(to) == 0 {
		return nil, common.NewValidationError(string(dispatch.ChannelMailgun), dispatch.KeyToEmail, "no valid recipient addresses")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	_ = w.WriteField("from", p.fromAddress())
	for _, addr := range to {
		_ = w.WriteField("to", addr)
	}
	for _, addr := range dispatch.NormalizeEmailList(attribs.List(dispatch.KeyCcEmail), maxRecipients) {
		_ = w.WriteField("cc", addr)
	}
	for _, addr := range dispatch.NormalizeEmailList(attribs.List(dispatch.KeyBccEmail), maxRecipients) {
		_ = w.WriteField("bcc", addr)
	}

	_ = w.WriteField("subject", attribs.String(dispatch.KeySubject))
	_ = w.WriteField("text", msg.Text)
	if msg.HTML != "" {
		_ = w.WriteField("html", msg.HTML)
	}

	for _, tag := range cleanTags(attribs.List(dispatch.KeyTags)) {
		_ = w.WriteField("o:tag", tag)
	}

	if data := attribs.Map(dispatch.KeyRecipientData); len(data) > 0 {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, common.NewValidationError(string(dispatch.ChannelMailgun), dispatch.KeyRecipientData, err.Error())
		}
		_ = w.WriteField("recipient-variables", string(encoded))
	}

	if attribs.Has(dispatch.KeyTracking) {
		_ = w.WriteField("o:tracking", yesNo(attribs.Bool(dispatch.KeyTracking)))
	}
	if attribs.Bool(dispatch.KeyTestmode) {
		_ = w.WriteField("o:testmode", "yes")
	}

	if err := attachFiles(w, "attachment", attribs.List(dispatch.KeyAttachments)); err != nil {
		return nil, err
	}
	if err := attachFiles(w, "inline", attribs.List(dispatch.KeyInline)); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, common.WrapProviderError("mailgun", err)
	}

	url := fmt.Sprintf("%s/%s/messages", p.baseURL, p.fromDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, common.WrapProviderError("mailgun", err)
	}
	req.SetBasicAuth("api", p.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, common.WrapProviderError("mailgun", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return nil, common.WrapProviderError("mailgun", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		detail := errResp.Message
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, common.NewProviderError("mailgun", detail)
	}

	var successResp struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return nil, common.WrapProviderError("mailgun", fmt.Errorf("parsing response: %w", err))
	}

	return &dispatch.ProviderResult{
		Provider:  "mailgun",
		MessageID: successResp.ID,
		Detail:    map[string]any{"recipients": len(to)},
	}, nil
}

// fromAddress renders the From header as "Name <mailgun@domain>".
func (p *MailgunProvider) fromAddress() string {
	addr := "mailgun@" + p.fromDomain
	if p.fromName != "" {
		return fmt.Sprintf("%s <%s>", p.fromName, addr)
	}
	return addr
}

// cleanTags trims and truncates tags to Mailgun's limits and drops the
// excess beyond three. Truncation is by character so a multi-byte rune is
// never split mid-sequence.
func cleanTags(tags []string) []string {
	out := make([]string, 0, maxTags)
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > maxTagLength {
			tag = string([]rune(tag)[:maxTagLength])
		}
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// attachFiles reads each path and adds it as a multipart file part.
func attachFiles(w *multipart.Writer, field string, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return common.NewValidationError(string(dispatch.ChannelMailgun), field, fmt.Sprintf("cannot read %s: %v", path, err))
		}
		part, err := w.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			return common.WrapProviderError("mailgun", err)
		}
		if _, err := part.Write(data); err != nil {
			return common.WrapProviderError("mailgun", err)
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
