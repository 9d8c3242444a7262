package treasury

import (
	"context"
	"net/http"
	"net/url"
)

// TokenOperation is one entry of the kasplex operation list.
type TokenOperation struct {
	P        string `json:"p"`
	Op       string `json:"op"`
	Tick     string `json:"tick"`
	Amt      string `json:"amt"`
	From     string `json:"from"`
	To       string `json:"to"`
	OpScore  string `json:"opScore"`
	HashRev  string `json:"hashRev"`
	FeeRev   string `json:"feeRev"`
	TxAccept string `json:"txAccept"`
	OpAccept string `json:"opAccept"`
	OpError  string `json:"opError"`
	MtsAdd   string `json:"mtsAdd"`
	MtsMod   string `json:"mtsMod"`
}

// Accepted is true once both the transaction and the operation were accepted.
func (o TokenOperation) Accepted() bool {
	return o.TxAccept == "1" && o.OpAccept == "1"
}

type OperationPage struct {
	Message string           `json:"message"`
	Prev    string           `json:"prev"`
	Next    string           `json:"next"`
	Result  []TokenOperation `json:"result"`
}

type TokenHistory interface {
	OperationList(ctx context.Context, address, tick, next string) (*OperationPage, error)
}

type KasplexClient struct {
	apiClient
}

// NewKasplexClient targets a kasplex indexer, e.g. https://api.kasplex.org/v1.
func NewKasplexClient(baseURL string, client *http.Client, rps float64) *KasplexClient {
	return &KasplexClient{newAPIClient("kasplex", baseURL, client, rps)}
}

func (k *KasplexClient) OperationList(ctx context.Context, address, tick, next string) (*OperationPage, error) {
	q := url.Values{}
	q.Set("address", address)
	if tick != "" {
		q.Set("tick", tick)
	}
	if next != "" {
		q.Set("next", next)
	}
	page := &OperationPage{}
	if err := k.getJSON(ctx, k.baseURL+"/krc20/oplist?"+q.Encode(), page); err != nil {
		return nil, err
	}
	return page, nil
}
