package dispatch

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"f451comms/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for the dispatch domain.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a new dispatch handler.
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// SendRequest is the request body for POST /api/v1/send.
type SendRequest struct {
	Message    string           `json:"message" binding:"required"`
	HTML       string           `json:"html"`
	Blocks     []map[string]any `json:"blocks"`
	Channels   []string         `json:"channels"`
	Attributes map[string]any   `json:"attributes"`
}

// channelOutcome is the per-channel element of a send response.
type channelOutcome struct {
	Channel  string          `json:"channel"`
	Success  bool            `json:"success"`
	Provider *ProviderResult `json:"provider,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// sendResponse summarizes one dispatch call.
type sendResponse struct {
	Delivered int              `json:"delivered"`
	Failed    int              `json:"failed"`
	Outcomes  []channelOutcome `json:"outcomes"`
}

// channelInfo describes one registered channel for GET /api/v1/channels.
type channelInfo struct {
	Channel    string   `json:"channel"`
	Service    string   `json:"service"`
	Attributes []string `json:"attributes"`
}

// Send handles POST /api/v1/send
// Dispatches the message to every requested channel synchronously and
// reports the per-channel outcomes. The call succeeds (200) when at least
// one channel delivered.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	msg := &Message{Text: req.Message, HTML: req.HTML, Blocks: req.Blocks}
	result, err := h.dispatcher.Send(c.Request.Context(), msg, req.Channels, req.Attributes)

	var delivery *common.DeliveryError
	if err != nil && !errors.As(err, &delivery) {
		common.HandleError(c, err)
		return
	}

	resp := buildSendResponse(result)
	if resp.Delivered == 0 {
		slog.Warn("dispatch failed on every channel", "channels", req.Channels)
		if err == nil {
			// Suppression was requested, so Send returned no error even
			// though nothing delivered.
			err = common.NewDeliveryError(result.Failed())
		}
		common.Error(c, http.StatusBadGateway, err.Error())
		return
	}

	common.Success(c, http.StatusOK, resp)
}

// ListChannels handles GET /api/v1/channels
func (h *Handler) ListChannels(c *gin.Context) {
	reg := h.dispatcher.Registry()

	channels := make([]channelInfo, 0, len(reg.Channels()))
	for _, ch := range reg.Channels() {
		p, _ := reg.Provider(ch)
		channels = append(channels, describeChannel(p))
	}

	common.Success(c, http.StatusOK, gin.H{
		"channels": channels,
		"aliases":  reg.Aliases(),
	})
}

// GetChannel handles GET /api/v1/channels/:name
func (h *Handler) GetChannel(c *gin.Context) {
	name := c.Param("name")

	reg := h.dispatcher.Registry()
	resolved, _ := reg.Resolve([]string{name})
	if len(resolved) != 1 {
		common.HandleError(c, common.NewNotFoundError("channel", name))
		return
	}

	p, _ := reg.Provider(resolved[0])
	common.Success(c, http.StatusOK, describeChannel(p))
}

// RegisterRoutes registers dispatch routes to the given router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/send", h.Send)
	rg.GET("/channels", h.ListChannels)
	rg.GET("/channels/:name", h.GetChannel)
}

func buildSendResponse(result Result) sendResponse {
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	resp := sendResponse{Outcomes: make([]channelOutcome, 0, len(result))}
	for _, k := range keys {
		o := result[k]
		co := channelOutcome{Channel: o.Channel, Success: o.OK(), Provider: o.Provider}
		if o.Err != nil {
			co.Error = o.Err.Error()
			resp.Failed++
		} else {
			resp.Delivered++
		}
		resp.Outcomes = append(resp.Outcomes, co)
	}
	return resp
}

func describeChannel(p Provider) channelInfo {
	schema := p.Schema()
	attrs := make([]string, 0, len(schema))
	for _, f := range schema {
		attrs = append(attrs, f.Key)
	}
	return channelInfo{
		Channel:    string(p.Channel()),
		Service:    string(p.Service()),
		Attributes: attrs,
	}
}
