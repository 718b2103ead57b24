package suiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
)

const faucetRequestTimeout = 10 * time.Second

type faucetRequest struct {
	FixedAmountRequest struct {
		Recipient string `json:"recipient"`
	} `json:"FixedAmountRequest"`
}

type faucetResponse struct {
	Status    string            `json:"status"`
	CoinsSent []json.RawMessage `json:"coins_sent"`
}

// RequestFaucetHTTP requests funds for recipient via the faucet's HTTP API.
// Used as the fallback when the CLI faucet command fails.
func RequestFaucetHTTP(ctx context.Context, logger log.Logger, faucetURL, recipient string) error {
	var reqBody faucetRequest
	reqBody.FixedAmountRequest.Recipient = recipient
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return errors.Wrap(err, "encoding faucet request")
	}

	ctx, cancel := context.WithTimeout(ctx, faucetRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, faucetURL+"/gas", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "building faucet request")
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("Requesting faucet via HTTP", "url", faucetURL, "recipient", recipient)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "faucet HTTP request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading faucet response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("faucet returned %d: %s", resp.StatusCode, string(body))
	}

	var faucetResp faucetResponse
	if err := json.Unmarshal(body, &faucetResp); err != nil {
		return errors.Wrap(err, "decoding faucet response")
	}
	if faucetResp.Status != "Success" {
		return errors.Errorf("faucet request rejected: %s", string(body))
	}

	logger.Info("Faucet HTTP request successful", "coins", len(faucetResp.CoinsSent))
	return nil
}
