package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hezronokwach/safe-haven/internal/history"
)

type fakeDialogue struct {
	reply string
	calls int
	hist  []history.Message
}

func (f *fakeDialogue) RespondPlain(ctx context.Context, text string, hist []history.Message) (string, error) {
	f.calls++
	f.hist = hist
	return f.reply, nil
}

type sentMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func botServer(t *testing.T, sent *[]sentMessage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var m sentMessage
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			t.Errorf("decode sendMessage: %v", err)
		}
		*sent = append(*sent, m)
		w.Write([]byte(`{"ok":true}`))
	}))
}

func postUpdate(t *testing.T, h *Handler, chatID int64, text string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"message":{"chat":{"id":` + jsonInt(chatID) + `},"text":` + jsonString(text) + `}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestWebhookOrdinaryTurn(t *testing.T) {
	var sent []sentMessage
	srv := botServer(t, &sent)
	defer srv.Close()

	store := history.NewMemoryStore()
	dlg := &fakeDialogue{reply: "I'm here for you."}
	h := NewHandler("token", dlg, store, nil, zerolog.Nop())
	h.SetAPIBase(srv.URL)

	rec := postUpdate(t, h, 42, "hello, I'm feeling low today")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(sent) != 1 || sent[0].ChatID != 42 || sent[0].Text != "I'm here for you." {
		t.Fatalf("sent = %+v", sent)
	}

	msgs, _ := store.Recent(context.Background(), "42", history.DefaultWindow)
	if len(msgs) != 2 {
		t.Fatalf("history entries = %d, want 2", len(msgs))
	}
	if msgs[0].Role != history.RoleUser || msgs[1].Role != history.RoleAssistant {
		t.Fatalf("history roles = %v %v", msgs[0].Role, msgs[1].Role)
	}
}

func TestWebhookHistoryPassedToDialogue(t *testing.T) {
	var sent []sentMessage
	srv := botServer(t, &sent)
	defer srv.Close()

	store := history.NewMemoryStore()
	store.Append(context.Background(), "7", history.Message{Role: history.RoleUser, Text: "earlier"})
	store.Append(context.Background(), "7", history.Message{Role: history.RoleAssistant, Text: "noted"})

	dlg := &fakeDialogue{reply: "ok"}
	h := NewHandler("token", dlg, store, nil, zerolog.Nop())
	h.SetAPIBase(srv.URL)

	postUpdate(t, h, 7, "and now this")
	if len(dlg.hist) != 2 {
		t.Fatalf("history passed = %d entries, want 2", len(dlg.hist))
	}
	if dlg.hist[0].Text != "earlier" {
		t.Fatalf("history order wrong: %+v", dlg.hist)
	}
}

func TestWebhookKeywordEmergencySkipsDialogue(t *testing.T) {
	var sent []sentMessage
	srv := botServer(t, &sent)
	defer srv.Close()

	store := history.NewMemoryStore()
	dlg := &fakeDialogue{reply: "should not be used"}
	h := NewHandler("token", dlg, store, nil, zerolog.Nop())
	h.SetAPIBase(srv.URL)

	postUpdate(t, h, 9, "he has a knife")
	if dlg.calls != 0 {
		t.Fatal("keyword emergency should bypass the dialogue backend")
	}
	if len(sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(sent))
	}
	if !strings.Contains(sent[0].Text, "1195") {
		t.Fatalf("directive reply missing helpline: %q", sent[0].Text)
	}
	msgs, _ := store.Recent(context.Background(), "9", history.DefaultWindow)
	if len(msgs) != 2 {
		t.Fatalf("history entries = %d, want 2", len(msgs))
	}
}

func TestWebhookIgnoresNonTextUpdates(t *testing.T) {
	var sent []sentMessage
	srv := botServer(t, &sent)
	defer srv.Close()

	dlg := &fakeDialogue{}
	h := NewHandler("token", dlg, history.NewMemoryStore(), nil, zerolog.Nop())
	h.SetAPIBase(srv.URL)

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"message":{"chat":{"id":5}}}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if dlg.calls != 0 || len(sent) != 0 {
		t.Fatal("non-text update triggered processing")
	}
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	h := NewHandler("token", &fakeDialogue{}, history.NewMemoryStore(), nil, zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
