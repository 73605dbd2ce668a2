package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, d *Dispatcher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(d).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_SendSuccess(t *testing.T) {
	reg := newTestRegistry(t, nil, ChannelSlack, ChannelMailgun)
	r := newTestRouter(t, NewDispatcher(reg, Options{}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/send", gin.H{
		"message":  "deploy finished",
		"channels": []string{"all"},
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Delivered int `json:"delivered"`
			Failed    int `json:"failed"`
			Outcomes  []struct {
				Channel string `json:"channel"`
				Success bool   `json:"success"`
			} `json:"outcomes"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Data.Delivered)
	assert.Equal(t, 0, resp.Data.Failed)
	assert.Len(t, resp.Data.Outcomes, 2)
}

func TestHandler_SendPartialFailureStillOK(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(&stubProvider{channel: ChannelSlack}, nil))
	require.NoError(t, reg.Register(failingProvider(ChannelTwilio), nil))
	r := newTestRouter(t, NewDispatcher(reg, Options{}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/send", gin.H{
		"message":  "disk almost full",
		"channels": []string{"all"},
	})

	require.Equal(t, http.StatusOK, w.Code, "one delivered channel is a success")

	var resp struct {
		Data struct {
			Delivered int `json:"delivered"`
			Failed    int `json:"failed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Delivered)
	assert.Equal(t, 1, resp.Data.Failed)
}

func TestHandler_SendAllChannelsFail(t *testing.T) {
	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(failingProvider(ChannelTwilio), nil))
	r := newTestRouter(t, NewDispatcher(reg, Options{}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/send", gin.H{
		"message":  "hello",
		"channels": []string{"f451_twilio"},
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandler_SendMissingMessage(t *testing.T) {
	reg := newTestRegistry(t, nil, ChannelSlack)
	r := newTestRouter(t, NewDispatcher(reg, Options{}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/send", gin.H{
		"channels": []string{"all"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_SendUnknownChannels(t *testing.T) {
	reg := newTestRegistry(t, nil, ChannelSlack)
	r := newTestRouter(t, NewDispatcher(reg, Options{}))

	w := doJSON(t, r, http.MethodPost, "/api/v1/send", gin.H{
		"message":  "hello",
		"channels": []string{"carrier_pigeon"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_ListChannels(t *testing.T) {
	aliases := map[string]string{"chat": string(ChannelSlack)}
	reg := newTestRegistry(t, aliases, ChannelSlack, ChannelMailgun)
	r := newTestRouter(t, NewDispatcher(reg, Options{}))

	w := doJSON(t, r, http.MethodGet, "/api/v1/channels", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Channels []struct {
				Channel string `json:"channel"`
				Service string `json:"service"`
			} `json:"channels"`
			Aliases map[string]string `json:"aliases"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Channels, 2)
	assert.Equal(t, "f451_slack", resp.Data.Channels[0].Channel)
	assert.Equal(t, map[string]string{"chat": "f451_slack"}, resp.Data.Aliases)
}

func TestHandler_GetChannelByAlias(t *testing.T) {
	aliases := map[string]string{"chat": string(ChannelSlack)}
	reg := newTestRegistry(t, aliases, ChannelSlack)
	r := newTestRouter(t, NewDispatcher(reg, Options{}))

	w := doJSON(t, r, http.MethodGet, "/api/v1/channels/chat", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Channel string `json:"channel"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "f451_slack", resp.Data.Channel)
}

func TestHandler_GetChannelNotFound(t *testing.T) {
	reg := newTestRegistry(t, nil, ChannelSlack)
	r := newTestRouter(t, NewDispatcher(reg, Options{}))

	w := doJSON(t, r, http.MethodGet, "/api/v1/channels/carrier_pigeon", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
