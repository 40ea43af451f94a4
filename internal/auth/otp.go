package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// OTPSender delivers a one-time code to a phone number.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// MSG91Sender posts codes to the MSG91 v5 OTP API.
type MSG91Sender struct {
	BaseURL    string
	AuthKey    string
	TemplateID string
	Client     *http.Client
}

func NewMSG91Sender(baseURL, authKey, templateID string) *MSG91Sender {
	return &MSG91Sender{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AuthKey:    authKey,
		TemplateID: templateID,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type msg91Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (m *MSG91Sender) SendOTP(ctx context.Context, phone, code string) error {
	body, err := json.Marshal(map[string]string{
		"template_id": m.TemplateID,
		"mobile":      strings.TrimPrefix(phone, "+"),
		"otp":         code,
		"otp_length":  fmt.Sprint(len(code)),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/api/v5/otp", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authkey", m.AuthKey)

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("msg91 request: %w", err)
	}
	defer resp.Body.Close()

	var out msg91Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("msg91 response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Type != "success" {
		return fmt.Errorf("msg91 rejected otp: status %d type %q message %q", resp.StatusCode, out.Type, out.Message)
	}
	return nil
}

// LogSender writes codes to the log. Used in development when no gateway is configured.
type LogSender struct{}

func (LogSender) SendOTP(_ context.Context, phone, code string) error {
	log.Warn().Str("phone", phone).Str("otp", code).Msg("OTP gateway not configured, code logged")
	return nil
}

func randomOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	return fmt.Sprintf("%06d", n.Int64())
}
