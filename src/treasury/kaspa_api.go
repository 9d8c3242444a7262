package treasury

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type NativeInput struct {
	PreviousOutpointAddress string `json:"previous_outpoint_address"`
	PreviousOutpointAmount  uint64 `json:"previous_outpoint_amount"`
}

type NativeOutput struct {
	Amount                 uint64 `json:"amount"`
	ScriptPublicKeyAddress string `json:"script_public_key_address"`
}

// NativeTransaction is one entry of the kaspa rest api address history.
type NativeTransaction struct {
	TransactionID string         `json:"transaction_id"`
	IsAccepted    bool           `json:"is_accepted"`
	BlockTime     int64          `json:"block_time"` // unix millis
	Inputs        []NativeInput  `json:"inputs"`
	Outputs       []NativeOutput `json:"outputs"`
}

type NativeHistory interface {
	AddressTransactions(ctx context.Context, address string, before int64, limit int) ([]NativeTransaction, error)
}

type KaspaRestClient struct {
	apiClient
}

// NewKaspaRestClient targets a kaspa rest server, e.g. https://api.kaspa.org.
func NewKaspaRestClient(baseURL string, client *http.Client, rps float64) *KaspaRestClient {
	return &KaspaRestClient{newAPIClient("kaspa-rest", baseURL, client, rps)}
}

// AddressTransactions returns up to limit transactions older than before (unix
// millis, 0 for the newest page).
func (k *KaspaRestClient) AddressTransactions(ctx context.Context, address string, before int64, limit int) ([]NativeTransaction, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("resolve_previous_outpoints", "light")
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	endpoint := fmt.Sprintf("%s/addresses/%s/full-transactions-page?%s", k.baseURL, url.PathEscape(address), q.Encode())
	var txs []NativeTransaction
	if err := k.getJSON(ctx, endpoint, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}
