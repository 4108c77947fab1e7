package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/riskmonitor/engine/internal/chainclient"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
)

// chainlinkLatestAnswerABI reads the minimal Chainlink-style aggregator
// surface, one function, mirroring the teacher's single-purpose ABI
// constants (erc20ABIJSON).
const chainlinkLatestAnswerABI = `[{"inputs":[],"name":"latestRoundData","outputs":[
{"internalType":"uint80","name":"roundId","type":"uint80"},
{"internalType":"int256","name":"answer","type":"int256"},
{"internalType":"uint256","name":"startedAt","type":"uint256"},
{"internalType":"uint256","name":"updatedAt","type":"uint256"},
{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],
"stateMutability":"view","type":"function"}]`

// OnChainFeedSource reads a per-token Chainlink-shaped price feed contract.
type OnChainFeedSource struct {
	client   chainclient.Client
	decimals int32
}

// NewOnChainFeedSource builds a source over an already-dialed chain client.
// decimals is the feed's own answer scale (8 for most Chainlink feeds).
func NewOnChainFeedSource(client chainclient.Client, decimals int32) *OnChainFeedSource {
	return &OnChainFeedSource{client: client, decimals: decimals}
}

func (s *OnChainFeedSource) Name() string { return "onchain_feed" }

func (s *OnChainFeedSource) Quote(ctx context.Context, token domain.Token) (Quote, error) {
	if token.PriceFeed == nil {
		return Quote{}, errs.Newf(errs.NotFound, "oracle.OnChainFeedSource.Quote", "no price feed configured for %s", token.Key())
	}
	addr, err := chainclient.ParseAddress(*token.PriceFeed)
	if err != nil {
		return Quote{}, err
	}
	res, err := s.client.Call(ctx, addr, chainlinkLatestAnswerABI, "latestRoundData")
	if err != nil {
		return Quote{}, err
	}
	if len(res.Values) < 4 {
		return Quote{}, errs.Newf(errs.Decoding, "oracle.OnChainFeedSource.Quote", "latestRoundData returned %d values", len(res.Values))
	}
	answer, ok := res.Values[1].(*big.Int)
	if !ok {
		return Quote{}, errs.Newf(errs.Decoding, "oracle.OnChainFeedSource.Quote", "answer has unexpected type %T", res.Values[1])
	}
	updatedAt, ok := res.Values[3].(*big.Int)
	if !ok {
		return Quote{}, errs.Newf(errs.Decoding, "oracle.OnChainFeedSource.Quote", "updatedAt has unexpected type %T", res.Values[3])
	}

	price := decimal.NewFromBigInt(answer, -s.decimals)
	age := time.Since(time.Unix(updatedAt.Int64(), 0))
	return Quote{PriceUSD: price, Age: age, Valid: price.IsPositive()}, nil
}

// RESTQuoteSource polls an off-chain REST price API through a token-bucket
// rate limiter. On a 429 response it waits out the Retry-After delay (given
// in seconds, cut short if ctx ends) and then returns a Transient error;
// the request itself is not repeated.
type RESTQuoteSource struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewRESTQuoteSource builds a rate-limited REST source.
func NewRESTQuoteSource(baseURL string, timeout time.Duration, ratePerSecond float64, burst int) *RESTQuoteSource {
	return &RESTQuoteSource{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (s *RESTQuoteSource) Name() string { return "rest_quote" }

type restQuoteResponse struct {
	PriceUSD   string `json:"price_usd"`
	UpdatedAt  int64  `json:"updated_at"`
	Valid      bool   `json:"valid"`
}

func (s *RESTQuoteSource) Quote(ctx context.Context, token domain.Token) (Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Quote{}, errs.New(errs.Transient, "oracle.RESTQuoteSource.Quote", err)
	}

	url := fmt.Sprintf("%s/price/%d/%s", s.baseURL, token.ChainID, token.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, errs.New(errs.Internal, "oracle.RESTQuoteSource.Quote", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Quote{}, errs.New(errs.Transient, "oracle.RESTQuoteSource.Quote", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && secs > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(secs) * time.Second):
			}
		}
		return Quote{}, errs.Newf(errs.Transient, "oracle.RESTQuoteSource.Quote", "rate limited fetching price for %s", token.Key())
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, errs.Newf(errs.Transient, "oracle.RESTQuoteSource.Quote", "unexpected status %d", resp.StatusCode)
	}

	var body restQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, errs.New(errs.Decoding, "oracle.RESTQuoteSource.Quote", err)
	}

	price, err := decimal.NewFromString(body.PriceUSD)
	if err != nil {
		return Quote{}, errs.New(errs.Decoding, "oracle.RESTQuoteSource.Quote", err)
	}

	return Quote{
		PriceUSD: price,
		Age:      time.Since(time.Unix(body.UpdatedAt, 0)),
		Valid:    body.Valid,
	}, nil
}
