package yookassa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/courierbot-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/courierbot-backend/pkg/errors"
)

func testConfig(baseURL string) config.YooKassaConfig {
	return config.YooKassaConfig{
		ShopID:    "shop-1",
		SecretKey: "secret",
		ReturnURL: "https://t.me/courier_bot",
		BaseURL:   baseURL,
	}
}

func TestCreatePaymentSendsExpectedRequest(t *testing.T) {
	var captured map[string]any
	var headers http.Header
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"id":"pay_1","status":"pending","confirmation":{"type":"redirect","confirmation_url":"https://yoomoney.ru/checkout/pay_1"}}`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL+"/v3"), WithIdempotenceKeys(func() string { return "key-1" }))
	require.NoError(t, err)

	payment, err := client.CreatePayment(context.Background(), 150, "Вывоз мусора (3 пакетов)", 42)
	require.NoError(t, err)
	assert.Equal(t, "pay_1", payment.ID)
	assert.Equal(t, "https://yoomoney.ru/checkout/pay_1", payment.URL)

	assert.Equal(t, "/v3/payments", path)
	assert.Equal(t, "key-1", headers.Get("Idempotence-Key"))
	user, pass, ok := (&http.Request{Header: headers}).BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "shop-1", user)
	assert.Equal(t, "secret", pass)

	amt := captured["amount"].(map[string]any)
	assert.Equal(t, "150.00", amt["value"])
	assert.Equal(t, "RUB", amt["currency"])
	assert.Equal(t, true, captured["capture"])
	conf := captured["confirmation"].(map[string]any)
	assert.Equal(t, "redirect", conf["type"])
	assert.Equal(t, "https://t.me/courier_bot", conf["return_url"])
	assert.Equal(t, "42", captured["metadata"].(map[string]any)["order_id"])
}

func TestCreatePaymentNon200IsDependencyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","code":"invalid_credentials"}`))
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)
	_, err = client.CreatePayment(context.Background(), 50, "x", 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Contains(t, err.Error(), "status 401")
}

func TestCreatePaymentRejectsNonPositiveAmount(t *testing.T) {
	client, err := NewClient(testConfig("http://unused"))
	require.NoError(t, err)
	_, err = client.CreatePayment(context.Background(), 0, "x", 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.YooKassaConfig{ShopID: "x"})
	assert.ErrorIs(t, err, errCredentialsRequired)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "2499.00", FormatAmount(2499))
	assert.Equal(t, "50.00", FormatAmount(50))
}

func TestNotificationOrderRefAcceptsStringAndNumber(t *testing.T) {
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"event":"payment.succeeded","object":{"id":"p","status":"succeeded","metadata":{"order_id":"17"}}}`), &n))
	assert.Equal(t, OrderRef(17), n.Object.Metadata.OrderID)
	assert.True(t, n.IsSucceeded())

	require.NoError(t, json.Unmarshal([]byte(`{"event":"payment.canceled","object":{"id":"p","metadata":{"order_id":18}}}`), &n))
	assert.Equal(t, OrderRef(18), n.Object.Metadata.OrderID)
	assert.False(t, n.IsSucceeded())

	assert.Error(t, json.Unmarshal([]byte(`{"object":{"metadata":{"order_id":"abc"}}}`), &n))
}
