// Package chainclient provides typed, retrying RPC access to EVM chains,
// grounded on the teacher's lazy per-chain ethclient dial and ABI-call
// pattern (internal/web3/erc20_helpers.go) and its ENS resolver
// (internal/web3/ens_resolver.go).
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/errs"
	"github.com/riskmonitor/engine/pkg/observability"
)

// Result is the decoded output of a contract call.
type Result struct {
	Values []interface{}
}

// Client talks to a single chain's RPC endpoint.
type Client interface {
	ChainID() uint64
	BlockHeight(ctx context.Context) (uint64, error)
	Call(ctx context.Context, contract common.Address, abiJSON, method string, args ...interface{}) (Result, error)
	Raw() *ethclient.Client
}

type client struct {
	chainID uint64
	name    string
	eth     *ethclient.Client
	breaker *CircuitBreaker
	retry   retryPolicy
	logger  *observability.Logger

	abiCacheMu sync.Mutex
	abiCache   map[string]abi.ABI
}

// Dial connects to the given chain endpoint. The connection is established
// eagerly (unlike the teacher's lazy-on-first-call provider map) since the
// engine dials once at startup for its fixed, configured chain set.
func Dial(ctx context.Context, endpoint config.ChainEndpoint, chainCfg config.ChainConfig, logger *observability.Logger) (Client, error) {
	eth, err := ethclient.DialContext(ctx, endpoint.RPCURL)
	if err != nil {
		return nil, errs.New(errs.Transient, "chainclient.Dial", fmt.Errorf("dial %s (chain %d): %w", endpoint.Name, endpoint.ChainID, err))
	}
	return &client{
		chainID:  endpoint.ChainID,
		name:     endpoint.Name,
		eth:      eth,
		breaker:  NewCircuitBreaker(chainCfg.CircuitOpenAfter, chainCfg.CircuitHalfOpenFor),
		retry:    retryPolicy{baseDelay: chainCfg.RetryBaseDelay, factor: 2, maxAttempts: chainCfg.RetryMaxAttempts},
		logger:   logger,
		abiCache: make(map[string]abi.ABI),
	}, nil
}

func (c *client) ChainID() uint64 { return c.chainID }

func (c *client) Raw() *ethclient.Client { return c.eth }

func (c *client) BlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.withBreaker(ctx, func() error {
		h, err := c.eth.BlockNumber(ctx)
		height = h
		return classify(err)
	})
	return height, err
}

// Call packs method+args against the given ABI, invokes it as a read-only
// eth_call, and unpacks the result. ABIs are parsed once and cached by their
// source text, mirroring the teacher's package-level parsedERC20ABI.
func (c *client) Call(ctx context.Context, contract common.Address, abiJSON, method string, args ...interface{}) (Result, error) {
	parsed, err := c.parsedABI(abiJSON)
	if err != nil {
		return Result{}, err
	}

	callData, err := parsed.Pack(method, args...)
	if err != nil {
		return Result{}, errs.New(errs.InvalidInput, "chainclient.Call", fmt.Errorf("pack %s: %w", method, err))
	}

	var raw []byte
	err = c.withBreaker(ctx, func() error {
		res, cerr := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: callData}, nil)
		raw = res
		return classify(cerr)
	})
	if err != nil {
		return Result{}, err
	}

	var out []interface{}
	if err := parsed.UnpackIntoInterface(&out, method, raw); err != nil {
		return Result{}, errs.New(errs.Decoding, "chainclient.Call", fmt.Errorf("unpack %s: %w", method, err))
	}
	return Result{Values: out}, nil
}

func (c *client) parsedABI(abiJSON string) (abi.ABI, error) {
	c.abiCacheMu.Lock()
	defer c.abiCacheMu.Unlock()
	if a, ok := c.abiCache[abiJSON]; ok {
		return a, nil
	}
	a, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return abi.ABI{}, errs.New(errs.Internal, "chainclient.parsedABI", err)
	}
	c.abiCache[abiJSON] = a
	return a, nil
}

// withBreaker runs fn through the circuit breaker and the capped-backoff
// retry policy, retrying only transient classifications.
func (c *client) withBreaker(ctx context.Context, fn func() error) error {
	if !c.breaker.Allow() {
		return errs.New(errs.Transient, "chainclient", fmt.Errorf("circuit open for chain %d (%s)", c.chainID, c.name))
	}
	err := c.retry.do(ctx, errs.IsRetryable, fn)
	if err == nil {
		c.breaker.RecordSuccess()
	} else {
		c.breaker.RecordFailure()
	}
	return err
}

// classify maps a raw go-ethereum error into the engine's error taxonomy.
// Reverts become ContractRevert and are not retried; every other error
// (dial drops, timeouts, rate limiting, malformed responses) is classified
// Transient and retried.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "revert"), strings.Contains(msg, "execution reverted"):
		return errs.New(errs.ContractRevert, "chainclient.call", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.New(errs.Transient, "chainclient.call", err)
	default:
		return errs.New(errs.Transient, "chainclient.call", err)
	}
}

// ParseAddress strictly parses a 20-byte hex address, case-insensitively.
func ParseAddress(s string) (common.Address, error) {
	trimmed := strings.TrimSpace(s)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, errs.New(errs.InvalidInput, "chainclient.ParseAddress", fmt.Errorf("invalid address: %q", s))
	}
	return common.HexToAddress(trimmed), nil
}
