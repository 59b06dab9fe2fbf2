// Package multicall batches read-only contract calls through a Multicall2
// contract, cutting one RPC round-trip per fee tier down to one per pass.
package multicall

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// tryAggregate lets individual calls fail without reverting the batch, which
// is what per-tier quoting needs.
const multicallABI = `[
 {"inputs":[
   {"internalType":"bool","name":"requireSuccess","type":"bool"},
   {"components":[
     {"internalType":"address","name":"target","type":"address"},
     {"internalType":"bytes","name":"callData","type":"bytes"}],
    "internalType":"struct Multicall2.Call[]","name":"calls","type":"tuple[]"}],
  "name":"tryAggregate",
  "outputs":[
   {"components":[
     {"internalType":"bool","name":"success","type":"bool"},
     {"internalType":"bytes","name":"returnData","type":"bytes"}],
    "internalType":"struct Multicall2.Result[]","name":"returnData","type":"tuple[]"}],
  "stateMutability":"nonpayable","type":"function"}
]`

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success bool
	Data    []byte
}

type IClient interface {
	TryAggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Client struct {
	c    *ethclient.Client
	addr common.Address
	abi  abi.ABI
}

func New(c *ethclient.Client, addr common.Address) (IClient, error) {
	parsed, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	return &Client{c: c, addr: addr, abi: parsed}, nil
}

func (c *Client) TryAggregate(ctx context.Context, calls []Call) ([]Result, error) {
	payload, err := c.abi.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}

	raw, err := c.c.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate: %w", err)
	}

	var res []struct {
		Success    bool
		ReturnData []byte
	}
	if err := c.abi.UnpackIntoInterface(&res, "tryAggregate", raw); err != nil {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}

	out := make([]Result, len(res))
	for i, r := range res {
		out[i] = Result{Success: r.Success && len(r.ReturnData) > 0, Data: r.ReturnData}
	}
	return out, nil
}
