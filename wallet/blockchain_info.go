package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/tokenized/logger"
)

// BlockchainInfoConnector talks to the blockchain.info merchant API over
// authenticated HTTP GET requests. Credentials are embedded in the URL, which
// is why none of the request URLs are ever logged.
type BlockchainInfoConnector struct {
	guid        string
	password    string
	apiKey      string
	merchantURL string
	unspentURL  string
}

func NewBlockchainInfoConnector(cfg Config) *BlockchainInfoConnector {
	return &BlockchainInfoConnector{
		guid:        cfg.GUID,
		password:    cfg.Password,
		apiKey:      cfg.APIKey,
		merchantURL: cfg.MerchantURL,
		unspentURL:  cfg.UnspentURL,
	}
}

type balanceResponse struct {
	Balance uint64 `json:"balance"`
}

type newAddressResponse struct {
	Address string `json:"address"`
}

type unspentResponse struct {
	UnspentOutputs []struct {
		TxHash  string `json:"tx_hash"`
		TxIndex uint32 `json:"tx_output_n"`
		Script  string `json:"script"`
		Value   uint64 `json:"value"`
	} `json:"unspent_outputs"`
}

func (c *BlockchainInfoConnector) Login(ctx context.Context) error {
	return get(ctx, c.makeURL("login", nil), nil)
}

func (c *BlockchainInfoConnector) Balance(ctx context.Context, address string,
	confirmations int) (uint64, error) {

	response := &balanceResponse{}
	err := get(ctx, c.makeURL("address_balance", map[string]string{
		"address":       address,
		"confirmations": fmt.Sprintf("%d", confirmations),
	}), response)
	if err != nil {
		return 0, errors.Wrap(err, "address balance")
	}

	return response.Balance, nil
}

func (c *BlockchainInfoConnector) CreateTemporaryAddress(ctx context.Context,
	label string) (string, error) {

	response := &newAddressResponse{}
	err := get(ctx, c.makeURL("new_address", map[string]string{"label": label}), response)
	if err != nil {
		return "", errors.Wrap(err, "new address")
	}

	return response.Address, nil
}

func (c *BlockchainInfoConnector) UnspentOutputs(ctx context.Context,
	address string) ([]FundingInput, error) {

	// This calls a different API that is not accessible through the localhost
	// merchant proxy.
	url := fmt.Sprintf("%s?active=%s&format=json", c.unspentURL, address)

	response := &unspentResponse{}
	if err := get(ctx, url, response); err != nil {
		return nil, errors.Wrap(err, "unspent outputs")
	}

	result := make([]FundingInput, 0, len(response.UnspentOutputs))
	for _, u := range response.UnspentOutputs {
		// tx_hash is in internal byte order, not the reversed display order.
		hashBytes, err := hex.DecodeString(u.TxHash)
		if err != nil {
			return nil, errors.Wrap(err, "tx hash")
		}
		hash, err := chainhash.NewHash(hashBytes)
		if err != nil {
			return nil, errors.Wrap(err, "tx hash")
		}

		script, err := hex.DecodeString(u.Script)
		if err != nil {
			return nil, errors.Wrap(err, "script")
		}

		result = append(result, FundingInput{
			OutPoint: wire.OutPoint{Hash: *hash, Index: u.TxIndex},
			Address:  address,
			PkScript: script,
			Value:    u.Value,
		})
	}

	logger.InfoWithFields(ctx, []logger.Field{
		logger.String("address", address),
		logger.Int("outputs", len(result)),
	}, "Fetched unspent outputs")

	return result, nil
}

func (c *BlockchainInfoConnector) Archive(ctx context.Context, address string) error {
	return get(ctx, c.makeURL("archive_address", map[string]string{"address": address}), nil)
}

func (c *BlockchainInfoConnector) Pay(ctx context.Context, fromAddress, toAddress string,
	amount, fee uint64) error {

	return get(ctx, c.makeURL("payment", map[string]string{
		"from":   fromAddress,
		"to":     toAddress,
		"amount": fmt.Sprintf("%d", amount),
		"fee":    fmt.Sprintf("%d", fee),
	}), nil)
}

func (c *BlockchainInfoConnector) SendToMany(ctx context.Context, fromAddress string,
	recipients map[string]uint64, fee uint64) error {

	js, err := json.Marshal(recipients)
	if err != nil {
		return errors.Wrap(err, "marshal recipients")
	}

	return get(ctx, c.makeURL("sendmany", map[string]string{
		"from":       fromAddress,
		"recipients": string(js),
		"fee":        fmt.Sprintf("%d", fee),
	}), nil)
}

func (c *BlockchainInfoConnector) makeURL(command string, extras map[string]string) string {
	values := url.Values{}
	values.Set("password", c.password)
	values.Set("api_code", c.apiKey)
	for name, value := range extras {
		values.Set(name, value)
	}

	return fmt.Sprintf("%s/merchant/%s/%s?%s", c.merchantURL, c.guid, command, values.Encode())
}
