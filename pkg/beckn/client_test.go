//go:build unit || !integration

package beckn

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gridshift-project/gridshift/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientParams{
		BaseURL:      server.URL,
		SubscriberID: "test-agent",
		Signer:       NoopSigner{},
		RetryMax:     0,
	})
	require.NoError(t, err)
	return client, server
}

func ackHandler(t *testing.T, captured *Request) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"ack":{"status":"ACK"}}}`))
	})
}

func TestClientEnvelopeFields(t *testing.T) {
	logger.ConfigureTestLogging(t)
	var captured Request
	client, _ := newTestClient(t, ackHandler(t, &captured))

	_, err := client.Search(context.Background(), "txn-abc", SearchIntent{Region: "north"})
	require.NoError(t, err)

	require.Equal(t, ProtocolDomain, captured.Context.Domain)
	require.Equal(t, "search", captured.Context.Action)
	require.Equal(t, ProtocolVersion, captured.Context.Version)
	require.Equal(t, "test-agent", captured.Context.BapID)
	require.Equal(t, "txn-abc", captured.Context.TransactionID)
	require.NotEmpty(t, captured.Context.MessageID)
	require.NotEmpty(t, captured.Context.Timestamp)
	require.Equal(t, RequestTTL, captured.Context.TTL)
}

func TestClientFreshMessageIDPerRequest(t *testing.T) {
	logger.ConfigureTestLogging(t)
	var messageIDs []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		messageIDs = append(messageIDs, req.Context.MessageID)
		_, _ = w.Write([]byte(`{}`))
	}))

	ctx := context.Background()
	_, err := client.Select(ctx, "txn-abc", Offer{ProviderID: "p-1"})
	require.NoError(t, err)
	_, err = client.Confirm(ctx, "txn-abc", OrderDetails{JobID: "j-1"})
	require.NoError(t, err)

	require.Len(t, messageIDs, 2)
	require.NotEqual(t, messageIDs[0], messageIDs[1], "message ID must be fresh per request")
}

func TestClientSignsRequests(t *testing.T) {
	logger.ConfigureTestLogging(t)
	signer, err := NewEd25519Signer("key-1", nil)
	require.NoError(t, err)
	publicKey := signer.PublicKey()

	var authHeader string
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientParams{
		BaseURL:      server.URL,
		SubscriberID: "test-agent",
		Signer:       signer,
	})
	require.NoError(t, err)

	_, err = client.Status(context.Background(), "txn-abc", "order-1")
	require.NoError(t, err)

	require.Contains(t, authHeader, `keyId="key-1"`)
	require.Contains(t, authHeader, `algorithm="ed25519"`)

	start := strings.Index(authHeader, `signature="`)
	require.GreaterOrEqual(t, start, 0)
	sigB64 := authHeader[start+len(`signature="`) : len(authHeader)-1]
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	require.NoError(t, err)
	require.True(t, ed25519.Verify(publicKey, body, sig), "signature must cover the exact request body")
}

func TestClientSurfacesProtocolError(t *testing.T) {
	logger.ConfigureTestLogging(t)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":"30001","message":"provider not found"}}`))
	}))

	_, err := client.Select(context.Background(), "txn-abc", Offer{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "provider not found")
}

func TestClientSurfacesHTTPError(t *testing.T) {
	logger.ConfigureTestLogging(t)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Init(context.Background(), "txn-abc", OrderDetails{})
	require.Error(t, err)
}
