package slackbot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/slack-go/slack"

	"escalator/internal/channel"
	"escalator/internal/render"
)

type fakeSlackAPI struct {
	mu       sync.Mutex
	users    map[string]string // email -> user ID
	postErr  string
	posted   []postedMessage
	openedBy []string
}

type postedMessage struct {
	channel string
	text    string
	blocks  string
}

func newFakeSlack(t *testing.T, f *fakeSlackAPI) *slack.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		var resp map[string]any
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case "users.lookupByEmail":
			id, ok := f.users[r.FormValue("email")]
			if !ok {
				resp = map[string]any{"ok": false, "error": "users_not_found"}
				break
			}
			resp = map[string]any{"ok": true, "user": map[string]any{"id": id}}
		case "conversations.open":
			f.openedBy = append(f.openedBy, r.FormValue("users"))
			resp = map[string]any{"ok": true, "channel": map[string]any{"id": "D" + r.FormValue("users")}}
		case "chat.postMessage":
			if f.postErr != "" {
				resp = map[string]any{"ok": false, "error": f.postErr}
				break
			}
			f.posted = append(f.posted, postedMessage{
				channel: r.FormValue("channel"),
				text:    r.FormValue("text"),
				blocks:  r.FormValue("blocks"),
			})
			resp = map[string]any{"ok": true, "channel": r.FormValue("channel"), "ts": "1700000000.000100"}
		default:
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return slack.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/"))
}

func TestLookupHandle(t *testing.T) {
	fake := &fakeSlackAPI{users: map[string]string{"vp@example.com": "U100"}}
	c := NewClient(newFakeSlack(t, fake))

	id, err := c.LookupHandle(context.Background(), "vp@example.com")
	if err != nil {
		t.Fatalf("LookupHandle returned error: %v", err)
	}
	if id != "U100" {
		t.Fatalf("unexpected handle: %q", id)
	}

	_, err = c.LookupHandle(context.Background(), "ghost@example.com")
	if !errors.Is(err, channel.ErrHandleNotFound) {
		t.Fatalf("expected ErrHandleNotFound, got %v", err)
	}
}

func TestDeliverPostsBlocksWithFallback(t *testing.T) {
	fake := &fakeSlackAPI{}
	c := NewClient(newFakeSlack(t, fake))

	msg := render.Message{
		Headline: "SLA urgent: case C-9",
		Intro:    "Four hours left.",
		Fields:   []render.Field{{Label: "Market", Value: "Denver"}},
		Text:     "SLA urgent: case C-9\nFour hours left.",
	}
	if err := c.Deliver(context.Background(), "U7", msg); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.openedBy) != 1 || fake.openedBy[0] != "U7" {
		t.Fatalf("expected DM opened with U7, got %v", fake.openedBy)
	}
	if len(fake.posted) != 1 {
		t.Fatalf("expected 1 post, got %d", len(fake.posted))
	}
	p := fake.posted[0]
	if p.channel != "DU7" {
		t.Fatalf("unexpected channel: %q", p.channel)
	}
	if p.text != msg.Text {
		t.Fatalf("unexpected fallback text: %q", p.text)
	}
	if !strings.Contains(p.blocks, "SLA urgent: case C-9") || !strings.Contains(p.blocks, "Denver") {
		t.Fatalf("blocks missing content: %s", p.blocks)
	}
}

func TestPostDMStaleHandle(t *testing.T) {
	fake := &fakeSlackAPI{postErr: "user_disabled"}
	c := NewClient(newFakeSlack(t, fake))

	err := c.PostDM(context.Background(), "U8", nil, "hi")
	if !errors.Is(err, channel.ErrStaleHandle) {
		t.Fatalf("expected ErrStaleHandle, got %v", err)
	}
}

func TestPostDMOtherErrorIsNotStale(t *testing.T) {
	fake := &fakeSlackAPI{postErr: "internal_error"}
	c := NewClient(newFakeSlack(t, fake))

	err := c.PostDM(context.Background(), "U8", nil, "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, channel.ErrStaleHandle) {
		t.Fatalf("internal_error must not be treated as stale: %v", err)
	}
}
