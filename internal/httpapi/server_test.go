package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opsdesk-ai/opsdesk/internal/archive"
	"github.com/opsdesk-ai/opsdesk/internal/config"
	"github.com/opsdesk-ai/opsdesk/internal/ledger"
	"github.com/opsdesk-ai/opsdesk/internal/messaging"
	"github.com/opsdesk-ai/opsdesk/internal/orchestrator"
	"github.com/opsdesk-ai/opsdesk/internal/session"
	"github.com/opsdesk-ai/opsdesk/internal/workflow"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := orchestrator.New(orchestrator.Deps{
		Sessions:  session.NewStore(20),
		Archive:   archive.NewInMemoryStore(),
		Ledger:    ledger.NewMock(),
		Messaging: messaging.NewMock(),
		Defaults: workflow.Defaults{
			BaseCurrency:      "USD",
			OpsAccount:        "ACC-1001-USD",
			SettlementAccount: "ACC-1002-USD",
			CounterpartyBIC:   "CHASUS33",
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	cfg := config.Config{AllowAnyOrigin: true, LedgerMode: "mock", MessagingMode: "mock"}
	ts := httptest.NewServer(New(cfg, svc, nil).Router())
	t.Cleanup(ts.Close)
	return ts
}

func postChat(t *testing.T, ts *httptest.Server, body string) (*http.Response, orchestrator.Result) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/chat", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var res orchestrator.Result
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp, res
}

func TestChatEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, res := postChat(t, ts, `{"session_key":"desk-1","text":"balance of ACC-1001-USD"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if res.Workflow != workflow.NameBalance {
		t.Fatalf("workflow = %s", res.Workflow)
	}
	if res.SessionKey != "desk-1" {
		t.Fatalf("session key = %s", res.SessionKey)
	}
	if !strings.Contains(res.Text, "ACC-1001-USD") {
		t.Fatalf("text missing account:\n%s", res.Text)
	}
}

func TestChatRejectsEmptyText(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := postChat(t, ts, `{"text":"  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHistoryAndClear(t *testing.T) {
	ts := newTestServer(t)

	if resp, _ := postChat(t, ts, `{"session_key":"desk-2","text":"list USD accounts"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}

	resp, err := http.Get(ts.URL + "/v1/session/desk-2/history")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer resp.Body.Close()
	var hist struct {
		SessionKey string         `json:"session_key"`
		Turns      []session.Turn `json:"turns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(hist.Turns))
	}

	clearResp, err := http.Post(ts.URL+"/v1/session/desk-2/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	clearResp.Body.Close()
	if clearResp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", clearResp.StatusCode)
	}

	again, err := http.Post(ts.URL+"/v1/session/desk-2/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("clear again: %v", err)
	}
	again.Body.Close()
	if again.StatusCode != http.StatusNotFound {
		t.Fatalf("second clear status = %d, want 404", again.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestChatWSStreamsBlocksThenResult(t *testing.T) {
	ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	err = conn.WriteJSON(map[string]string{
		"session_key": "desk-ws",
		"text":        "are we ready for EOD?",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	blocks := 0
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var ev struct {
			Type   string          `json:"type"`
			Result json.RawMessage `json:"result"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v (after %d blocks)", err, blocks)
		}
		switch ev.Type {
		case "block":
			blocks++
		case "result":
			if blocks == 0 {
				t.Fatalf("result arrived before any block")
			}
			var res orchestrator.Result
			if err := json.Unmarshal(ev.Result, &res); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			if res.Workflow != workflow.NameEODCheck {
				t.Fatalf("workflow = %s", res.Workflow)
			}
			return
		case "error":
			t.Fatalf("unexpected error event")
		}
	}
}
