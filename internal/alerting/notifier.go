package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"supplywatcher/internal/metrics"
	"supplywatcher/internal/supply"
)

// Notification wraps a decoded alert payload with display context.
type Notification struct {
	Bucket    time.Time
	Token     common.Address
	OldSupply *big.Int
	NewSupply *big.Int
	Threshold *big.Int
	Decimals  uint8
	Channels  []string
	Payload   []byte
	Message   string
}

// NewNotification builds a notification from an encoded alert payload.
func NewNotification(bucket time.Time, payload []byte, threshold *big.Int, decimals uint8, channels []string) (Notification, error) {
	decoded, err := supply.DecodeAlertPayload(payload)
	if err != nil {
		return Notification{}, err
	}
	return Notification{
		Bucket:    bucket,
		Token:     decoded.Token,
		OldSupply: decoded.OldSupply,
		NewSupply: decoded.NewSupply,
		Threshold: threshold,
		Decimals:  decimals,
		Channels:  channels,
		Payload:   append([]byte(nil), payload...),
	}, nil
}

// Delta returns NewSupply - OldSupply.
func (n Notification) Delta() *big.Int {
	if n.NewSupply == nil || n.OldSupply == nil {
		return new(big.Int)
	}
	return new(big.Int).Sub(n.NewSupply, n.OldSupply)
}

// Notifier defines an alert sink.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Named is implemented by sinks that label their metrics.
type Named interface {
	Name() string
}

// Units scales a raw integer amount down by decimals.
func Units(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// FormatUnits renders a raw integer amount in token units.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "n/a"
	}
	return Units(amount, decimals).String()
}

// LogNotifier emits alerts as structured log events.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log sink.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Name implements Named.
func (l *LogNotifier) Name() string { return "log" }

// Notify writes a supply_alert event.
func (l *LogNotifier) Notify(ctx context.Context, note Notification) error {
	l.logger.Warn().
		Str("event", "supply_alert").
		Time("bucket", note.Bucket).
		Str("token", note.Token.Hex()).
		Str("old_supply", note.OldSupply.String()).
		Str("new_supply", note.NewSupply.String()).
		Str("delta", note.Delta().String()).
		Str("threshold", bigString(note.Threshold)).
		Str("payload", hexutil.Encode(note.Payload)).
		Msg("total supply increase exceeded threshold")
	return nil
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram sink.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Name implements Named.
func (n *TelegramNotifier) Name() string { return "telegram" }

// Notify calls the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Time("bucket", note.Bucket).
		Str("token", note.Token.Hex()).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("alert sent (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Bridged Supply Alert]\n")
	builder.WriteString(fmt.Sprintf("Token: %s\n", note.Token.Hex()))
	builder.WriteString(fmt.Sprintf("Bucket: %s UTC\n", note.Bucket.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Old supply: %s\n", FormatUnits(note.OldSupply, note.Decimals)))
	builder.WriteString(fmt.Sprintf("New supply: %s\n", FormatUnits(note.NewSupply, note.Decimals)))
	builder.WriteString(fmt.Sprintf("Increase: %s (max allowed %s)\n", FormatUnits(note.Delta(), note.Decimals), FormatUnits(note.Threshold, note.Decimals)))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.Message != "" {
		builder.WriteString(note.Message)
	}
	return builder.String()
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, note Notification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		name := sinkName(sink)
		if err := sink.Notify(ctx, note); err != nil {
			metrics.AlertsFailedTotal.WithLabelValues(name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		metrics.AlertsSentTotal.WithLabelValues(name).Inc()
	}
	return errors.Join(errs...)
}

func sinkName(n Notifier) string {
	if named, ok := n.(Named); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", n)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "n/a"
	}
	return v.String()
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = Multi(nil)
)
