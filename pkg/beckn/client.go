package beckn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Client speaks the counterparty protocol: one POST per action with a
// signed JSON envelope.
type Client struct {
	baseURI      *url.URL
	subscriberID string
	signer       Signer
	http         *retryablehttp.Client
	clock        clock.Clock
}

type ClientParams struct {
	BaseURL      string
	SubscriberID string
	Signer       Signer
	Clock        clock.Clock

	// RequestTimeout bounds a single HTTP exchange including retries.
	RequestTimeout time.Duration
	RetryMax       int
}

func NewClient(params ClientParams) (*Client, error) {
	baseURI, err := url.Parse(params.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing counterparty URL %q", params.BaseURL)
	}
	if params.Signer == nil {
		params.Signer = NoopSigner{}
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}

	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	httpClient.RetryMax = params.RetryMax
	if params.RequestTimeout > 0 {
		httpClient.HTTPClient.Timeout = params.RequestTimeout
	}

	return &Client{
		baseURI:      baseURI,
		subscriberID: params.SubscriberID,
		signer:       params.Signer,
		http:         httpClient,
		clock:        params.Clock,
	}, nil
}

func (c *Client) Search(ctx context.Context, transactionID string, intent SearchIntent) (*Response, error) {
	return c.post(ctx, "search", transactionID, searchMessage{Intent: intent})
}

func (c *Client) Select(ctx context.Context, transactionID string, offer Offer) (*Response, error) {
	return c.post(ctx, "select", transactionID, selectMessage{Offer: offer})
}

func (c *Client) Init(ctx context.Context, transactionID string, order OrderDetails) (*Response, error) {
	return c.post(ctx, "init", transactionID, orderMessage{Order: order})
}

func (c *Client) Confirm(ctx context.Context, transactionID string, order OrderDetails) (*Response, error) {
	return c.post(ctx, "confirm", transactionID, orderMessage{Order: order})
}

func (c *Client) Status(ctx context.Context, transactionID, orderID string) (*Response, error) {
	return c.post(ctx, "status", transactionID, statusMessage{OrderID: orderID})
}

func (c *Client) post(ctx context.Context, action, transactionID string, message interface{}) (*Response, error) {
	payload := Request{
		Context: Context{
			Domain:        ProtocolDomain,
			Action:        action,
			Version:       ProtocolVersion,
			BapID:         c.subscriberID,
			BapURI:        c.baseURI.String(),
			TransactionID: transactionID,
			MessageID:     uuid.NewString(),
			Timestamp:     c.clock.Now().UTC().Format(time.RFC3339),
			TTL:           RequestTTL,
		},
		Message: message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s request", action)
	}
	signature, err := c.signer.Sign(body)
	if err != nil {
		return nil, errors.Wrapf(err, "signing %s request", action)
	}

	addr := c.baseURI.JoinPath(action).String()
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s request", action)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Authorization", signature)
	}

	log.Ctx(ctx).Trace().Str("Action", action).Str("TransactionID", transactionID).Msg("protocol request")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request failed", action)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", action, res.StatusCode)
	}

	var response Response
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, errors.Wrapf(err, "decoding %s response", action)
	}
	if response.Error != nil {
		return nil, errors.Wrapf(response.Error, "%s rejected", action)
	}
	return &response, nil
}
