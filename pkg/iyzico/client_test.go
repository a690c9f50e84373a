package iyzico

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:    "test-api-key",
		SecretKey: "test-secret-key",
		BaseURL:   baseURL,
	})
}

func TestDoRequestSendsSignedHeaders(t *testing.T) {
	var gotAuth, gotRnd, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRnd = r.Header.Get("x-iyzi-rnd")
		gotVersion = r.Header.Get("x-iyzi-client-version")
		w.Write([]byte(`{"status":"success","paymentId":"12345","threeDSHtmlContent":"PGZvcm0+"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).InitThreeDS(context.Background(), &InitThreeDSRequest{
		Locale:         "tr",
		ConversationID: "c-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "12345", resp.PaymentID)
	assert.True(t, strings.HasPrefix(gotAuth, "IYZWSv2 "))
	assert.NotEmpty(t, gotRnd)
	assert.Equal(t, clientVersion, gotVersion)
}

func TestDoRequestDecodesBodyOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"status":"failure","errorCode":"5007","errorMessage":"Gecersiz imza"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).CompleteThreeDS(context.Background(), &CompleteThreeDSRequest{
		Locale:         "tr",
		ConversationID: "c-1",
		PaymentID:      "12345",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFailure, resp.Status)
	busErr := resp.BusinessError()
	require.NotNil(t, busErr)
	assert.Equal(t, "5007", busErr.Code)
	assert.Equal(t, "Gecersiz imza", busErr.Message)
}

func TestDoRequestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := newTestClient(srv.URL).RetrievePayment(context.Background(), &RetrievePaymentRequest{
		Locale:         "tr",
		ConversationID: "c-1",
		PaymentID:      "12345",
	})
	require.Error(t, err)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestDoRequestProtocolErrorOnGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway maintenance</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).RetrievePayment(context.Background(), &RetrievePaymentRequest{
		Locale:         "tr",
		ConversationID: "c-1",
		PaymentID:      "12345",
	})
	require.Error(t, err)

	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestDoRequestEmptySecretKey(t *testing.T) {
	client := NewClient(Config{APIKey: "api-key", SecretKey: "", BaseURL: "http://localhost:1"})

	_, err := client.RetrievePayment(context.Background(), &RetrievePaymentRequest{PaymentID: "1"})
	assert.ErrorIs(t, err, ErrEmptySecretKey)
}

func TestMaskPAN(t *testing.T) {
	assert.Equal(t, "************0008", MaskPAN("5528790000000008"))
	assert.Equal(t, "****", MaskPAN("1234"))
	assert.Equal(t, "", MaskPAN(""))
}

func TestMaskForLog(t *testing.T) {
	payload := []byte(`{"paymentCard":{"cardNumber":"5528790000000008","cvc":"123","cardHolderName":"Ayse Yilmaz"}}`)
	masked := string(maskForLog(payload))

	assert.NotContains(t, masked, "5528790000000008")
	assert.NotContains(t, masked, `"123"`)
	assert.Contains(t, masked, "0008")
	assert.Contains(t, masked, "Ayse Yilmaz")
}
