package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type webhook struct {
	mu   sync.Mutex
	msgs []string
}

func (h *webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.msgs = append(h.msgs, body.Text)
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (h *webhook) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.msgs...)
}

func TestSlackDedupe(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	s := NewSlack(SlackOpts{WebhookURL: srv.URL, Prefix: "executor"})
	ctx := context.Background()

	s.Resolved(ctx, "1-7", "deposit 7 finalized")
	s.Failed(ctx, "1-7", "deposit 7 failed")
	s.Failed(ctx, "1-7", "deposit 7 failed again")
	s.Failed(ctx, "1-8", "deposit 8 failed")
	s.Resolved(ctx, "1-7", "deposit 7 finalized")
	s.Resolved(ctx, "1-7", "deposit 7 finalized")
	s.Failed(ctx, "1-7", "deposit 7 failed")

	require.Equal(t, []string{
		"[executor] :rotating_light: deposit 7 failed",
		"[executor] :rotating_light: deposit 8 failed",
		"[executor] :white_check_mark: deposit 7 finalized",
		"[executor] :rotating_light: deposit 7 failed",
	}, hook.messages())
}

func TestNewWithoutWebhook(t *testing.T) {
	n := New("", "executor", nil)
	require.IsType(t, Nop{}, n)
	n.Failed(context.Background(), "k", "ignored")
}
