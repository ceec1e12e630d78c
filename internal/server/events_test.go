package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
)

func TestEventStreamDeliversOwnerEvents(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.handler)
	defer server.Close()

	token := env.token(t, testUserID)
	streamURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/events?access_token=" + token
	conn, response, err := websocket.DefaultDialer.Dial(streamURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	if response.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected protocol switch, got %d", response.StatusCode)
	}

	post := func(path, body string) {
		request, err := http.NewRequest(http.MethodPost, server.URL+path, bytes.NewReader([]byte(body)))
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		request.Header.Set("Authorization", "Bearer "+token)
		request.Header.Set("Content-Type", "application/json")
		result, err := http.DefaultClient.Do(request)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		result.Body.Close()
	}
	post("/documents", `{"title":"Streamed"}`)
	post("/session/sections", `{"type":"awards"}`)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var event editor.Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("expected a section-added event: %v", err)
		}
		if event.OwnerID != testUserID {
			t.Fatalf("received event for another owner: %+v", event)
		}
		if event.EventType == editor.EventSectionAdded {
			if event.SectionID == "" || event.DocumentID == "" {
				t.Fatalf("section event missing ids: %+v", event)
			}
			return
		}
	}
}

func TestEventStreamRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.handler)
	defer server.Close()

	streamURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/session/events"
	_, response, err := websocket.DefaultDialer.Dial(streamURL, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without a token")
	}
	if response == nil || response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", response)
	}
}
