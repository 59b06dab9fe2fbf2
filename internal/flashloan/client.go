// Package flashloan wraps the on-chain settlement contract that borrows,
// swaps and repays inside a single transaction.
package flashloan

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Minimal ABI for the settlement contract.
const contractABI = `[
    {"inputs":[{"internalType":"address","name":"_token","type":"address"},{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"requestFlashLoan","outputs":[],"stateMutability":"nonpayable","type":"function"},
    {"inputs":[{"internalType":"address","name":"_tokenAddress","type":"address"}],"name":"getBalance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
    {"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const (
	// Fallback when the node refuses to estimate, sized for the full
	// borrow-swap-swap-repay path.
	fallbackExecGas = 1_000_000

	// Estimates get a 20% headroom before submission.
	gasHeadroomNum = 120
	gasHeadroomDen = 100
)

// Client signs and submits settlement transactions for a single wallet.
type Client struct {
	ec       *ethclient.Client
	log      *zap.Logger
	cabi     abi.ABI
	contract common.Address
	pk       *ecdsa.PrivateKey
	sender   common.Address
}

func New(ec *ethclient.Client, contract common.Address, walletPK string, log *zap.Logger) (*Client, error) {
	cabi, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("parse settlement abi: %w", err)
	}

	pk, err := crypto.HexToECDSA(strings.TrimPrefix(walletPK, "0x"))
	if err != nil {
		return nil, fmt.Errorf("bad private key: %w", err)
	}

	return &Client{
		ec:       ec,
		log:      log,
		cabi:     cabi,
		contract: contract,
		pk:       pk,
		sender:   crypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

func (c *Client) Sender() common.Address { return c.sender }

// Owner returns the settlement contract's owner address.
func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	input, err := c.cabi.Pack("owner")
	if err != nil {
		return common.Address{}, fmt.Errorf("pack owner: %w", err)
	}
	out, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: input}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call owner: %w", err)
	}
	vals, err := c.cabi.Unpack("owner", out)
	if err != nil || len(vals) != 1 {
		return common.Address{}, fmt.Errorf("unpack owner: %w", err)
	}
	owner, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected owner type %T", vals[0])
	}
	return owner, nil
}

// Balance returns the contract's holdings of the given token.
func (c *Client) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	input, err := c.cabi.Pack("getBalance", token)
	if err != nil {
		return nil, fmt.Errorf("pack getBalance: %w", err)
	}
	out, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getBalance: %w", err)
	}
	vals, err := c.cabi.Unpack("getBalance", out)
	if err != nil || len(vals) != 1 {
		return nil, fmt.Errorf("unpack getBalance: %w", err)
	}
	bal, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type %T", vals[0])
	}
	return bal, nil
}

// EstimateUnits asks the node to estimate requestFlashLoan and adds 20%
// headroom. Failure is reported back so callers can pick their own
// fallback: the cost model and the execution path size theirs differently.
func (c *Client) EstimateUnits(ctx context.Context, token common.Address, amount *big.Int) (uint64, error) {
	input, err := c.cabi.Pack("requestFlashLoan", token, amount)
	if err != nil {
		return 0, fmt.Errorf("pack requestFlashLoan: %w", err)
	}
	units, err := c.ec.EstimateGas(ctx, ethereum.CallMsg{
		From: c.sender,
		To:   &c.contract,
		Data: input,
	})
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return units * gasHeadroomNum / gasHeadroomDen, nil
}

// Execute submits requestFlashLoan and waits for the receipt. A mined but
// reverted transaction is reported as an error with the hash preserved.
func (c *Client) Execute(ctx context.Context, token common.Address, amount *big.Int) (txHash string, gasUsed uint64, err error) {
	input, err := c.cabi.Pack("requestFlashLoan", token, amount)
	if err != nil {
		return "", 0, fmt.Errorf("pack requestFlashLoan: %w", err)
	}

	gasLimit, err := c.EstimateUnits(ctx, token, amount)
	if err != nil {
		c.log.Debug("gas estimation failed, using fallback", zap.Error(err))
		gasLimit = fallbackExecGas
	}
	signedTx, err := c.signTx(ctx, input, gasLimit)
	if err != nil {
		return "", 0, fmt.Errorf("sign tx: %w", err)
	}

	if err := c.ec.SendTransaction(ctx, signedTx); err != nil {
		return "", 0, fmt.Errorf("send transaction: %w", err)
	}
	hash := signedTx.Hash().Hex()
	c.log.Info("flash loan submitted", zap.String("tx", hash))

	receipt, err := bind.WaitMined(ctx, c.ec, signedTx)
	if err != nil {
		return hash, 0, fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return hash, receipt.GasUsed, fmt.Errorf("transaction reverted: %s", hash)
	}
	return hash, receipt.GasUsed, nil
}

func (c *Client) signTx(ctx context.Context, input []byte, gasLimit uint64) (*ethtypes.Transaction, error) {
	chainID, err := c.ec.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	nonce, err := c.ec.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasTipCap, err := c.ec.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}

	header, err := c.ec.HeaderByNumber(ctx, nil)
	if err != nil || header.BaseFee == nil {
		return nil, fmt.Errorf("get header/base fee: %w", err)
	}
	gasFeeCap := new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(2)),
		gasTipCap,
	)

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &c.contract,
		Value:     big.NewInt(0),
		Data:      input,
	})

	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewLondonSigner(chainID), c.pk)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signedTx, nil
}
