package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// SMSService sends SMS through the Semaphore API, which covers all PH
// networks.
type SMSService struct {
	APIKey     string
	SenderName string
	APIPath    string
	Client     *http.Client
}

// SMSResponse represents a single message in Semaphore's reply
type SMSResponse struct {
	MessageID int64  `json:"message_id"`
	Status    string `json:"status"`
	Network   string `json:"network"`
	Recipient string `json:"recipient"`
}

// NewSMSService creates a new SMS service instance
func NewSMSService() *SMSService {
	senderName := os.Getenv("SEMAPHORE_SENDER_NAME")
	if senderName == "" {
		senderName = "Serbisyo"
	}
	return &SMSService{
		APIKey:     os.Getenv("SEMAPHORE_API_KEY"),
		SenderName: senderName,
		APIPath:    "https://api.semaphore.co/api/v4/messages",
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send delivers a message to a PH mobile number
func (s *SMSService) Send(phoneNumber, message string) error {
	if s.APIKey == "" {
		return fmt.Errorf("SEMAPHORE_API_KEY environment variable is required for SMS")
	}

	params := url.Values{}
	params.Set("apikey", s.APIKey)
	params.Set("number", phoneNumber)
	params.Set("message", message)
	params.Set("sendername", s.SenderName)

	req, err := http.NewRequest("POST", s.APIPath, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, string(body))
	}

	// Semaphore returns an array of queued messages
	var messages []SMSResponse
	if err := json.Unmarshal(body, &messages); err != nil || len(messages) == 0 {
		return fmt.Errorf("failed to parse SMS response: %s", string(body))
	}

	log.Printf("SMS queued to %s via %s, message ID %d", phoneNumber, messages[0].Network, messages[0].MessageID)
	return nil
}

// SendOTPViaSMS sends a 6-digit OTP via SMS
func SendOTPViaSMS(phone string, otp string) error {
	return SendOTPViaSMSWithMessage(phone, otp, "")
}

// SendOTPViaSMSWithMessage sends an OTP with a custom message
func SendOTPViaSMSWithMessage(phone string, otp string, customMessage string) error {
	// Normalize to +63 format
	phone = normalizePHNumber(phone)

	message := customMessage
	if message == "" {
		message = fmt.Sprintf("Your Serbisyo verification code is: %s. This code will expire in 10 minutes.", otp)
	}

	smsService := NewSMSService()
	return smsService.Send(phone, message)
}

// normalizePHNumber converts local 09xx numbers to international +639xx form
func normalizePHNumber(phone string) string {
	phone = strings.TrimSpace(phone)
	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "09"):
		return "+63" + phone[1:]
	case strings.HasPrefix(phone, "63"):
		return "+" + phone
	default:
		return "+" + phone
	}
}
