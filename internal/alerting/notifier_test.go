package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplywatcher/internal/supply"
)

var token = common.HexToAddress("0x00000000000000000000000000000000000000cc")

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification(t)); err != nil {
		t.Fatalf("Telegram Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "New supply: 0.0012") {
		t.Fatalf("text should render supply in token units: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification(t)); err == nil {
		t.Fatal("ok=false should fail")
	}
}

func TestLogNotifierEmitsEvent(t *testing.T) {
	var buf bytes.Buffer
	notifier := NewLogNotifier(zerolog.New(&buf))
	require.NoError(t, notifier.Notify(context.Background(), testNotification(t)))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "supply_alert", entry["event"])
	assert.Equal(t, "1000", entry["old_supply"])
	assert.Equal(t, "1200", entry["new_supply"])
	assert.Equal(t, "200", entry["delta"])
	assert.Equal(t, token.Hex(), entry["token"])
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, Notification) error { return errors.New("boom") }

type countingNotifier struct{ calls int }

func (c *countingNotifier) Notify(context.Context, Notification) error {
	c.calls++
	return nil
}

func TestMultiContinuesPastFailures(t *testing.T) {
	counter := &countingNotifier{}
	err := Multi{failingNotifier{}, nil, counter}.Notify(context.Background(), testNotification(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, counter.calls)
}

func TestNewNotificationRejectsMalformedPayload(t *testing.T) {
	_, err := NewNotification(time.Now(), []byte{1, 2, 3}, big.NewInt(1), 0, nil)
	require.ErrorIs(t, err, supply.ErrMalformedInput)
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "1.5", FormatUnits(big.NewInt(1_500_000), 6))
	assert.Equal(t, "1200", FormatUnits(big.NewInt(1200), 0))
	assert.Equal(t, "n/a", FormatUnits(nil, 18))
}

func testNotification(t *testing.T) Notification {
	t.Helper()
	payload, err := supply.AlertPayload{Token: token, OldSupply: big.NewInt(1000), NewSupply: big.NewInt(1200)}.Encode()
	require.NoError(t, err)
	note, err := NewNotification(time.Now(), payload, big.NewInt(100), 6, []string{"log"})
	require.NoError(t, err)
	return note
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
