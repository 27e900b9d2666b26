package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/memory-mcp/src/config"
	"github.com/Protocol-Lattice/memory-mcp/src/identity"
	"github.com/Protocol-Lattice/memory-mcp/src/memory"
	"github.com/Protocol-Lattice/memory-mcp/src/memory/embed"
	"github.com/Protocol-Lattice/memory-mcp/src/memory/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, transport, envDefault string) *Server {
	t.Helper()
	logger := quietLogger()
	svc := memory.NewService(embed.DummyEmbedder{Dims: 512}, store.NewInMemoryStore())
	srv, err := New(Options{Transport: transport, Addr: "127.0.0.1:0", Logger: logger}, svc,
		identity.NewInterceptor(envDefault, identity.WithLogger(logger)))
	require.NoError(t, err)
	return srv
}

func TestNewRejectsUnknownTransport(t *testing.T) {
	_, err := New(Options{Transport: "carrier-pigeon"}, nil, identity.NewInterceptor(""))
	require.ErrorIs(t, err, config.ErrUnknownTransport)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, config.TransportSSE, "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, config.TransportSSE, body.Transport)
}

func TestStdioHasNoHTTPHandler(t *testing.T) {
	srv := newTestServer(t, config.TransportStdio, "")
	assert.Nil(t, srv.Handler())
	assert.Error(t, srv.Serve(context.Background(), nil))
}

func TestBaseURL(t *testing.T) {
	cases := []struct {
		opts Options
		want string
	}{
		{Options{Addr: "0.0.0.0:8050"}, "http://localhost:8050"},
		{Options{Addr: "10.1.2.3:9000"}, "http://10.1.2.3:9000"},
		{Options{Addr: ":8050"}, "http://localhost:8050"},
		{Options{Addr: "0.0.0.0:8050", BaseURL: "https://memory.example.com"}, "https://memory.example.com"},
	}
	for _, tc := range cases {
		s := &Server{opts: tc.opts}
		assert.Equal(t, tc.want, s.baseURL(), tc.opts.Addr)
	}
}

// mcpClient speaks the streamable HTTP transport against a test server.
type mcpClient struct {
	t       *testing.T
	url     string
	session string
	nextID  int
}

func (c *mcpClient) post(method string, params any, headers map[string]string) json.RawMessage {
	c.t.Helper()
	c.nextID++
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": c.nextID, "method": method, "params": params})
	require.NoError(c.t, err)

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if c.session != "" {
		req.Header.Set("Mcp-Session-Id", c.session)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	if id := resp.Header.Get("Mcp-Session-Id"); id != "" {
		c.session = id
	}

	var out struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	require.Empty(c.t, out.Error)
	return out.Result
}

func (c *mcpClient) callTool(name string, args map[string]any, headers map[string]string) (string, bool) {
	c.t.Helper()
	return decodeToolResult(c.t, c.post("tools/call", map[string]any{"name": name, "arguments": args}, headers))
}

func decodeToolResult(t *testing.T, raw json.RawMessage) (string, bool) {
	t.Helper()
	var res struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	require.NoError(t, json.Unmarshal(raw, &res))
	require.NotEmpty(t, res.Content)
	return res.Content[0].Text, res.IsError
}

func TestStreamableHTTPScopesByHeader(t *testing.T) {
	srv := newTestServer(t, config.TransportStreamableHTTP, "")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := &mcpClient{t: t, url: ts.URL + "/mcp"}
	c.post("initialize", map[string]any{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
	}, nil)

	alice := map[string]string{identity.HeaderUserID: "alice"}
	bob := map[string]string{identity.HeaderLibreChatUserID: "bob"}

	text, isErr := c.callTool("save_memory", map[string]any{"text": "alice keeps bees"}, alice)
	require.False(t, isErr, text)
	assert.Contains(t, text, "user 'alice'")

	text, isErr = c.callTool("save_memory", map[string]any{"text": "bob keeps goats"}, bob)
	require.False(t, isErr, text)
	assert.Contains(t, text, "user 'bob'")

	text, _ = c.callTool("get_all_memories", nil, alice)
	assert.Contains(t, text, "alice keeps bees")
	assert.NotContains(t, text, "goats")

	text, _ = c.callTool("search_memories", map[string]any{"query": "keeps bees", "limit": 10}, bob)
	assert.NotContains(t, text, "alice")

	text, _ = c.callTool("delete_all_memories", map[string]any{"confirm": true}, bob)
	assert.Equal(t, "Successfully deleted 1 memories for user 'bob'.", text)

	text, _ = c.callTool("get_all_memories", nil, alice)
	assert.Contains(t, text, "alice keeps bees")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, config.TransportSSE, "")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/healthz", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStdioUsesProcessDefault(t *testing.T) {
	srv := newTestServer(t, config.TransportStdio, "desktop-user")

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeStdio(ctx, inR, outW) }()

	reader := bufio.NewReader(outR)
	roundTrip := func(line string) string {
		t.Helper()
		_, err := io.WriteString(inW, line+"\n")
		require.NoError(t, err)
		resp, err := reader.ReadString('\n')
		require.NoError(t, err)
		return resp
	}

	resp := roundTrip(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`)
	assert.Contains(t, resp, `"serverInfo"`)

	resp = roundTrip(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"save_memory","arguments":{"text":"offline note"}}}`)
	assert.True(t, strings.Contains(resp, "user 'desktop-user'"), resp)

	cancel()
	_ = inW.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stdio server did not stop")
	}
	_ = outW.Close()
}

type sseEvent struct {
	name string
	data string
}

// readSSE forwards every event on the stream until it ends.
func readSSE(r io.Reader, out chan<- sseEvent) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var ev sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.name != "" || ev.data != "" {
				out <- ev
			}
			ev = sseEvent{}
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

// sseClient holds the GET /sse stream open and posts JSON-RPC to the
// message endpoint it announces. Replies arrive on the stream.
type sseClient struct {
	t          *testing.T
	messageURL string
	events     chan sseEvent
	nextID     int
}

func dialSSE(t *testing.T, ctx context.Context, baseURL string) *sseClient {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/sse", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	t.Cleanup(func() { _ = resp.Body.Close() })

	c := &sseClient{t: t, events: make(chan sseEvent, 64)}
	go readSSE(resp.Body, c.events)

	ev := c.next()
	require.Equal(t, "endpoint", ev.name)
	endpoint, err := url.Parse(ev.data)
	require.NoError(t, err)
	c.messageURL = baseURL + endpoint.RequestURI()
	return c
}

func (c *sseClient) next() sseEvent {
	c.t.Helper()
	select {
	case ev, ok := <-c.events:
		require.True(c.t, ok, "sse stream closed")
		return ev
	case <-time.After(5 * time.Second):
		c.t.Fatal("no sse event")
		return sseEvent{}
	}
}

func (c *sseClient) post(method string, params any, headers map[string]string) json.RawMessage {
	c.t.Helper()
	c.nextID++
	id := c.nextID
	body, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
	require.NoError(c.t, err)

	req, err := http.NewRequest(http.MethodPost, c.messageURL, bytes.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	require.Less(c.t, resp.StatusCode, 300)

	for {
		ev := c.next()
		if ev.name != "message" {
			continue
		}
		var msg struct {
			ID     *int            `json:"id"`
			Result json.RawMessage `json:"result"`
			Error  json.RawMessage `json:"error"`
		}
		require.NoError(c.t, json.Unmarshal([]byte(ev.data), &msg))
		if msg.ID == nil || *msg.ID != id {
			continue
		}
		require.Empty(c.t, msg.Error)
		return msg.Result
	}
}

func (c *sseClient) callTool(name string, args map[string]any, headers map[string]string) (string, bool) {
	c.t.Helper()
	return decodeToolResult(c.t, c.post("tools/call", map[string]any{"name": name, "arguments": args}, headers))
}

func TestSSEScopesByHeader(t *testing.T) {
	srv := newTestServer(t, config.TransportSSE, "shared-default")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := dialSSE(t, ctx, ts.URL)

	c.post("initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
	}, nil)

	alice := map[string]string{identity.HeaderUserID: "alice"}
	bob := map[string]string{identity.HeaderUserEmail: "bob@example.com"}
	blank := map[string]string{identity.HeaderUserID: "   "}

	text, isErr := c.callTool("save_memory", map[string]any{"text": "alice grows tomatoes"}, alice)
	require.False(t, isErr, text)
	assert.Contains(t, text, "user 'alice'")

	text, _ = c.callTool("search_memories", map[string]any{"query": "grows tomatoes", "limit": 10}, bob)
	assert.Equal(t, "[]", text)

	text, isErr = c.callTool("save_memory", map[string]any{"text": "bob sails"}, bob)
	require.False(t, isErr, text)
	assert.Contains(t, text, "user 'bob@example.com'")

	text, isErr = c.callTool("save_memory", map[string]any{"text": "team standup at nine"}, blank)
	require.False(t, isErr, text)
	assert.Contains(t, text, "user 'shared-default'")

	text, _ = c.callTool("get_all_memories", nil, alice)
	assert.Contains(t, text, "alice grows tomatoes")
	assert.NotContains(t, text, "bob sails")
	assert.NotContains(t, text, "standup")

	text, _ = c.callTool("get_all_memories", nil, nil)
	assert.Contains(t, text, "team standup at nine")
	assert.NotContains(t, text, "tomatoes")
}
