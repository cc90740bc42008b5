package services

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/serbisyo/serbisyo_backend/lifecycle"
	"github.com/serbisyo/serbisyo_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(baseURL string) *PayMongoService {
	return &PayMongoService{
		baseURL:    baseURL + "/",
		secretKey:  "sk_test_abc123",
		successURL: "https://app.example.com/payment/success",
		failedURL:  "https://app.example.com/payment/failed",
		isTesting:  true,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func TestCreateSource(t *testing.T) {
	var captured models.PayMongoSourceRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/sources", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"src_123","attributes":{"amount":52500,"currency":"PHP","type":"paymaya","status":"pending","redirect":{"checkout_url":"https://checkout.paymongo.com/src_123"},"metadata":{"bookingId":"abc"}}}}`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	sourceID, checkoutURL, err := svc.CreateSource(525, "maya", "abc")
	require.NoError(t, err)
	assert.Equal(t, "src_123", sourceID)
	assert.Equal(t, "https://checkout.paymongo.com/src_123", checkoutURL)

	// maya is sent to the gateway as paymaya, but the metadata keeps the
	// wallet type the client asked for
	assert.Equal(t, "paymaya", captured.Data.Attributes.Type)
	assert.Equal(t, "maya", captured.Data.Attributes.Metadata["walletType"])
	assert.Equal(t, "abc", captured.Data.Attributes.Metadata["bookingId"])

	// pesos become centavos on the wire
	assert.Equal(t, int64(52500), captured.Data.Attributes.Amount)
	assert.Equal(t, "PHP", captured.Data.Attributes.Currency)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("sk_test_abc123:"))
	assert.Equal(t, wantAuth, gotAuth)
}

func TestCreateSourceCentavoConversion(t *testing.T) {
	// Amounts like 19.99 have no exact float64 representation; a plain
	// int64(amount*100) truncates them to 1998 centavos.
	cases := []struct {
		pesos    float64
		centavos int64
	}{
		{19.99, 1999},
		{8.20, 820},
		{0.29, 29},
		{525.00, 52500},
		{100.005, 10001},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.centavos, pesosToCentavos(tc.pesos), "%.3f pesos", tc.pesos)
	}

	var captured models.PayMongoSourceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"data":{"id":"src_199","attributes":{"redirect":{"checkout_url":"https://checkout.paymongo.com/src_199"}}}}`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	_, _, err := svc.CreateSource(19.99, "gcash", "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(1999), captured.Data.Attributes.Amount)
}

func TestCreateSourceRejectsUnknownWallet(t *testing.T) {
	svc := newTestService("http://unused.invalid")
	_, _, err := svc.CreateSource(100, "grabpay", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported wallet type")
}

func TestCreateSourceGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"code":"parameter_below_minimum","detail":"amount must be at least 10000"}]}`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	_, _, err := svc.CreateSource(1, "gcash", "abc")
	require.Error(t, err)
	var gwErr *lifecycle.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, err.Error(), "parameter_below_minimum")
}

func TestCreateSourceMissingCredentials(t *testing.T) {
	svc := newTestService("http://unused.invalid")
	svc.secretKey = ""
	_, _, err := svc.CreateSource(100, "gcash", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYMONGO_SECRET_KEY")
}

func TestGetSourceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GET", r.Method)
		require.Equal(t, "/sources/src_456", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"src_456","attributes":{"status":"chargeable","metadata":{"bookingId":"booking789"}}}}`))
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	status, bookingID, err := svc.GetSourceStatus("src_456")
	require.NoError(t, err)
	assert.Equal(t, "chargeable", status)
	assert.Equal(t, "booking789", bookingID)
}
