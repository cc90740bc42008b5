package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/shopspring/decimal"
)

// PayMongoService handles interactions with the PayMongo API for gcash and
// maya source payments.
type PayMongoService struct {
	baseURL    string
	secretKey  string
	successURL string
	failedURL  string
	isTesting  bool
	client     *http.Client
}

// NewPayMongoService creates a new PayMongo service instance
func NewPayMongoService() *PayMongoService {
	// Test-mode keys start with sk_test_; no separate sandbox host
	secretKey := os.Getenv("PAYMONGO_SECRET_KEY")
	successURL := os.Getenv("PAYMONGO_SUCCESS_URL")
	failedURL := os.Getenv("PAYMONGO_FAILED_URL")
	isTesting := len(secretKey) > 8 && secretKey[:8] == "sk_test_"

	if secretKey == "" || successURL == "" || failedURL == "" {
		log.Printf("WARNING: PayMongo credentials not fully configured:")
		if secretKey == "" {
			log.Printf("  - PAYMONGO_SECRET_KEY is missing")
		}
		if successURL == "" {
			log.Printf("  - PAYMONGO_SUCCESS_URL is missing")
		}
		if failedURL == "" {
			log.Printf("  - PAYMONGO_FAILED_URL is missing")
		}
		log.Printf("Please set these environment variables for e-wallet payments to work")
	} else {
		log.Printf("PayMongo Service Configuration:")
		log.Printf("  Environment: %s", map[bool]string{true: "test", false: "live"}[isTesting])
		log.Printf("  Success URL: %s", successURL)
		log.Printf("  Failed URL: %s", failedURL)
		log.Printf("  Secret Key: [CONFIGURED]")
	}

	return &PayMongoService{
		baseURL:    "https://api.paymongo.com/v1/",
		secretKey:  secretKey,
		successURL: successURL,
		failedURL:  failedURL,
		isTesting:  isTesting,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// makeRequest performs an HTTP request to the PayMongo API
func (s *PayMongoService) makeRequest(method, endpoint string, payload interface{}, out interface{}) error {
	if s.secretKey == "" {
		return fmt.Errorf("missing PayMongo credentials. Please set PAYMONGO_SECRET_KEY environment variable")
	}

	url := s.baseURL + endpoint

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// PayMongo authenticates with the secret key as basic-auth username
	auth := base64.StdEncoding.EncodeToString([]byte(s.secretKey + ":"))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")

	if s.isTesting || os.Getenv("PAYMONGO_DEBUG") == "true" {
		log.Printf("PayMongo API Request: %s %s", method, url)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if s.isTesting || os.Getenv("PAYMONGO_DEBUG") == "true" {
		log.Printf("PayMongo API Response: %s", string(respBody))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp models.PayMongoErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && len(errResp.Errors) > 0 {
			log.Printf("PayMongo API Error Details: Code=%s, Detail=%s", errResp.Errors[0].Code, errResp.Errors[0].Detail)
			return fmt.Errorf("paymongo API error: %s - %s", errResp.Errors[0].Code, errResp.Errors[0].Detail)
		}
		return fmt.Errorf("paymongo API error: status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w\nResponse body: %s", err, string(respBody))
		}
	}
	return nil
}

// pesosToCentavos converts a peso amount to whole centavos. Truncating the
// float directly drops a centavo on amounts like 19.99, so round through
// decimal instead.
func pesosToCentavos(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateSource creates a gcash or paymaya payment source and returns its id
// and checkout URL. Amount is in pesos and converted to centavos on the wire.
func (s *PayMongoService) CreateSource(amount float64, walletType, bookingID string) (string, string, error) {
	// The gateway calls Maya by its old name
	sourceType := walletType
	if sourceType == "maya" {
		sourceType = "paymaya"
	}
	if sourceType != "gcash" && sourceType != "paymaya" {
		return "", "", fmt.Errorf("unsupported wallet type: %s", walletType)
	}

	payload := models.PayMongoSourceRequest{
		Data: models.PayMongoSourceData{
			Attributes: models.PayMongoSourceAttributes{
				Amount:   pesosToCentavos(amount),
				Currency: "PHP",
				Type:     sourceType,
				Redirect: models.PayMongoRedirect{
					Success: s.successURL,
					Failed:  s.failedURL,
				},
				Metadata: map[string]string{
					"bookingId":  bookingID,
					"walletType": walletType,
				},
			},
		},
	}

	var resp models.PayMongoSourceResponse
	if err := s.makeRequest("POST", "sources", payload, &resp); err != nil {
		return "", "", &lifecycle.GatewayError{Op: "create source", Err: err}
	}

	if resp.Data.ID == "" || resp.Data.Attributes.Redirect.CheckoutURL == "" {
		return "", "", fmt.Errorf("failed to parse checkout URL from response")
	}
	return resp.Data.ID, resp.Data.Attributes.Redirect.CheckoutURL, nil
}

// GetSourceStatus returns the current status of a payment source along with
// the bookingId it was created for.
func (s *PayMongoService) GetSourceStatus(sourceID string) (string, string, error) {
	var resp models.PayMongoSourceResponse
	if err := s.makeRequest("GET", "sources/"+sourceID, nil, &resp); err != nil {
		return "", "", &lifecycle.GatewayError{Op: "get source status", Err: err}
	}

	status := resp.Data.Attributes.Status
	bookingID := resp.Data.Attributes.Metadata["bookingId"]
	return status, bookingID, nil
}
