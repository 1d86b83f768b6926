package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/pkg/ctxutil"
	"github.com/yungbote/helpdesk-backend/internal/pkg/httpx"
	"github.com/yungbote/helpdesk-backend/internal/utils"
)

const whatsappPrefix = "whatsapp:"

type Client interface {
	SendWhatsApp(ctx context.Context, to, body string) (*Message, error)
	SendSMS(ctx context.Context, to, body string) (*Message, error)
	Enabled() bool
}

type Config struct {
	AccountSID   string
	AuthToken    string
	BaseURL      string
	WhatsAppFrom string
	SMSFrom      string
	Timeout      time.Duration
	MaxRetries   int
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		AccountSID:   strings.TrimSpace(utils.GetEnv("TWILIO_ACCOUNT_SID", "", log)),
		AuthToken:    strings.TrimSpace(utils.GetEnv("TWILIO_AUTH_TOKEN", "", log)),
		BaseURL:      strings.TrimSpace(utils.GetEnv("TWILIO_BASE_URL", "", log)),
		WhatsAppFrom: strings.TrimSpace(utils.GetEnv("TWILIO_WHATSAPP_FROM", "", log)),
		SMSFrom:      strings.TrimSpace(utils.GetEnv("TWILIO_SMS_FROM", "", log)),
		Timeout:      time.Duration(utils.GetEnvAsInt("TWILIO_TIMEOUT_SECONDS", 30, log)) * time.Second,
		MaxRetries:   utils.GetEnvAsInt("TWILIO_MAX_RETRIES", 4, log),
	}
}

// New builds the client. Missing credentials are not an error: the client
// comes up disabled and every send becomes a logged no-op, so the service
// runs without Twilio in development.
func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.twilio.com/2010-04-01"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	c := &client{
		log:        log.With("client", "TwilioClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
	}
	if !c.Enabled() {
		c.log.Warn("Twilio credentials missing, outbound WhatsApp/SMS disabled")
	}
	return c, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	maxRetries int
}

type Message struct {
	SID          string  `json:"sid,omitempty"`
	AccountSID   string  `json:"account_sid,omitempty"`
	To           string  `json:"to,omitempty"`
	From         string  `json:"from,omitempty"`
	Body         string  `json:"body,omitempty"`
	Status       string  `json:"status,omitempty"`
	ErrorCode    *int    `json:"error_code,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	DateCreated  string  `json:"date_created,omitempty"`
}

func (c *client) Enabled() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != ""
}

// SendWhatsApp delivers body to a phone number over the WhatsApp channel.
// The "whatsapp:" scheme is added to both sides when missing.
func (c *client) SendWhatsApp(ctx context.Context, to, body string) (*Message, error) {
	to = EnsureWhatsAppAddress(to)
	from := EnsureWhatsAppAddress(c.cfg.WhatsAppFrom)
	return c.sendMessage(ctx, to, from, body)
}

func (c *client) SendSMS(ctx context.Context, to, body string) (*Message, error) {
	return c.sendMessage(ctx, strings.TrimSpace(to), c.cfg.SMSFrom, body)
}

func (c *client) sendMessage(ctx context.Context, to, from, body string) (*Message, error) {
	if !c.Enabled() {
		c.log.Debug("Twilio disabled, dropping outbound message", "to", to)
		return &Message{To: to, From: from, Body: body, Status: "skipped"}, nil
	}
	if to == "" {
		return nil, fmt.Errorf("twilio: To required")
	}
	if from == "" {
		return nil, fmt.Errorf("twilio: From required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("twilio: Body required")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.cfg.BaseURL, c.cfg.AccountSID)
	return doForm[Message](c, ctx, http.MethodPost, endpoint, form)
}

// EnsureWhatsAppAddress adds the "whatsapp:" scheme if the number lacks it.
func EnsureWhatsAppAddress(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}

// StripWhatsAppAddress returns the bare phone number of a webhook address.
func StripWhatsAppAddress(addr string) string {
	return strings.TrimPrefix(strings.TrimSpace(addr), whatsappPrefix)
}

// InboundMessage is the form payload Twilio posts on an incoming WhatsApp
// or SMS message.
type InboundMessage struct {
	From        string
	To          string
	Body        string
	MessageSID  string
	ProfileName string
	NumMedia    int
}

func ParseInbound(form url.Values) InboundMessage {
	numMedia := 0
	fmt.Sscanf(form.Get("NumMedia"), "%d", &numMedia)
	return InboundMessage{
		From:        form.Get("From"),
		To:          form.Get("To"),
		Body:        strings.TrimSpace(form.Get("Body")),
		MessageSID:  form.Get("MessageSid"),
		ProfileName: strings.TrimSpace(form.Get("ProfileName")),
		NumMedia:    numMedia,
	}
}

// Phone returns the sender's bare phone number.
func (m InboundMessage) Phone() string {
	return StripWhatsAppAddress(m.From)
}

// ---------- HTTP / retry helpers ----------

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

type HTTPError struct {
	StatusCode int
	Body       string
	APIError   *apiError
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "twilio: <nil error>"
	}
	if e.APIError != nil && strings.TrimSpace(e.APIError.Message) != "" {
		if e.APIError.Code != 0 {
			return fmt.Sprintf("twilio http %d: %s (code=%d)", e.StatusCode, e.APIError.Message, e.APIError.Code)
		}
		return fmt.Sprintf("twilio http %d: %s", e.StatusCode, e.APIError.Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("twilio http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func doForm[T any](c *client, ctx context.Context, method, urlStr string, form url.Values) (*T, error) {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		out, resp, err := doFormOnce[T](c, ctx, method, urlStr, form)
		if err == nil {
			return out, nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("Twilio request retrying",
			"url", urlStr,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		time.Sleep(sleepFor)
		backoff *= 2
	}

	return nil, fmt.Errorf("unreachable retry loop")
}

func doFormOnce[T any](c *client, ctx context.Context, method, urlStr string, form url.Values) (*T, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resp, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && strings.TrimSpace(ae.Message) != "" {
			return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw), APIError: &ae}
		}
		return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out T
	if len(raw) == 0 {
		return &out, resp, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, resp, fmt.Errorf("twilio decode error: %w; raw=%s", err, string(raw))
	}
	return &out, resp, nil
}
