package client

import (
	"context"
	"dm-relay/contract"
	"dm-relay/domain"
	"encoding/json"
	"net/http"
)

// DeliveryClient submits messages to the delivery endpoint.
type DeliveryClient struct {
	*Client
}

func NewDeliveryClient(c *Client) *DeliveryClient {
	return &DeliveryClient{Client: c}
}

type sendResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Send returns an error for transport failures and non-2xx statuses only.
// A 2xx whose body has no "message" field yields an empty Confirmation.
func (c *DeliveryClient) Send(ctx context.Context, msg domain.Message) (contract.DeliveryReceipt, error) {
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/send", msg)
	if err != nil {
		return contract.DeliveryReceipt{}, err
	}
	var receipt contract.DeliveryReceipt
	err = c.do(req, nil, func(resp *http.Response) error {
		var body sendResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			receipt.Error = "malformed delivery reply"
			return nil
		}
		receipt = contract.DeliveryReceipt{Confirmation: body.Message, Error: body.Error}
		return nil
	})
	if err != nil {
		return contract.DeliveryReceipt{}, err
	}
	return receipt, nil
}
