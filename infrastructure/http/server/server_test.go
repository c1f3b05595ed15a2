package server

import (
	"bufio"
	"bytes"
	"context"
	"dm-relay/domain"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	directory, err := NewDirectory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = directory.Close() })

	srv := httptest.NewServer(NewServer(slog.New(slog.DiscardHandler), directory, Options{Host: "test"}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (int, map[string]string) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]string{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func getStatus(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestServer_Register(t *testing.T) {
	srv := newTestServer(t)

	t.Run("should issue a client uri for a new name", func(t *testing.T) {
		req := require.New(t)
		status, body := postJSON(t, srv.URL+"/register", map[string]string{"name": "alice"})
		req.Equal(http.StatusOK, status)
		req.True(strings.HasPrefix(body["client_uri"], "dm://"))
		req.True(strings.HasSuffix(body["client_uri"], "@test"))
	})

	t.Run("should refuse a duplicate without client uri", func(t *testing.T) {
		req := require.New(t)
		status, body := postJSON(t, srv.URL+"/register", map[string]string{"name": "alice"})
		req.Equal(http.StatusOK, status)
		req.Empty(body["client_uri"])
		req.NotEmpty(body["error"])
	})

	t.Run("should reject an empty name", func(t *testing.T) {
		req := require.New(t)
		status, _ := postJSON(t, srv.URL+"/register", map[string]string{"name": "  "})
		req.Equal(http.StatusBadRequest, status)
	})
}

func TestServer_Validate(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	postJSON(t, srv.URL+"/register", map[string]string{"name": "bob"})

	req.Equal(http.StatusOK, getStatus(t, srv.URL+"/validate?username=bob"))
	req.Equal(http.StatusNotFound, getStatus(t, srv.URL+"/validate?username=carol"))
	req.Equal(http.StatusBadRequest, getStatus(t, srv.URL+"/validate"))
}

func TestServer_SearchAndClients(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	for _, name := range []string{"Alice", "alicia", "bob"} {
		postJSON(t, srv.URL+"/register", map[string]string{"name": name})
	}

	resp, err := http.Get(srv.URL + "/search?query=ALI")
	req.NoError(err)
	defer resp.Body.Close()
	var found struct {
		Users []string `json:"users"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&found))
	req.Equal([]string{"Alice", "alicia"}, found.Users)

	resp2, err := http.Get(srv.URL + "/clients")
	req.NoError(err)
	defer resp2.Body.Close()
	var listed struct {
		Clients []string `json:"clients"`
	}
	req.NoError(json.NewDecoder(resp2.Body).Decode(&listed))
	req.Equal([]string{"Alice", "alicia", "bob"}, listed.Clients)
}

func TestServer_Send(t *testing.T) {
	srv := newTestServer(t)
	postJSON(t, srv.URL+"/register", map[string]string{"name": "bob"})

	t.Run("should confirm a message to a known recipient", func(t *testing.T) {
		req := require.New(t)
		status, body := postJSON(t, srv.URL+"/send", domain.Message{From: "alice", To: "bob", Body: "hi"})
		req.Equal(http.StatusOK, status)
		req.Equal("Message sent", body["message"])
	})

	t.Run("should answer without confirmation for an unknown recipient", func(t *testing.T) {
		req := require.New(t)
		status, body := postJSON(t, srv.URL+"/send", domain.Message{From: "alice", To: "nobody", Body: "hi"})
		req.Equal(http.StatusOK, status)
		req.Empty(body["message"])
		req.Equal("Recipient not found", body["error"])
	})

	t.Run("should reject an incomplete message", func(t *testing.T) {
		req := require.New(t)
		status, _ := postJSON(t, srv.URL+"/send", domain.Message{From: "alice", To: "bob"})
		req.Equal(http.StatusBadRequest, status)
	})
}

func TestServer_MessagesStream(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	postJSON(t, srv.URL+"/register", map[string]string{"name": "bob"})

	req.Equal(http.StatusNotFound, getStatus(t, srv.URL+"/messages?client=nobody"))

	// Queued before the stream opens, still delivered
	postJSON(t, srv.URL+"/send", domain.Message{From: "alice", To: "bob", Body: "first"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/messages?client=bob", nil)
	req.NoError(err)
	resp, err := http.DefaultClient.Do(httpReq)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal("text/event-stream", resp.Header.Get("Content-Type"))

	postJSON(t, srv.URL+"/send", domain.Message{From: "alice", To: "bob", Body: "second"})

	var events []domain.InboundEvent
	sc := bufio.NewScanner(resp.Body)
	for len(events) < 2 && sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e domain.InboundEvent
		req.NoError(json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
		events = append(events, e)
	}
	req.Equal([]domain.InboundEvent{
		{FromUser: "alice", Message: "first"},
		{FromUser: "alice", Message: "second"},
	}, events)
}

func TestServer_WebSocketStream(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t)
	postJSON(t, srv.URL+"/register", map[string]string{"name": "bob"})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?client=bob"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.NoError(err)
	defer conn.Close()

	postJSON(t, srv.URL+"/send", domain.Message{From: "alice", To: "bob", Body: "hello"})

	req.NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var e domain.InboundEvent
	req.NoError(conn.ReadJSON(&e))
	req.Equal(domain.InboundEvent{FromUser: "alice", Message: "hello"}, e)

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?client=nobody", nil)
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}
