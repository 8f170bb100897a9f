package main

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/tos-network/metagate/cmd/utils"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/crypto/eip712"
	"github.com/tos-network/metagate/internal/flags"
	"github.com/urfave/cli/v2"
)

type outputDigest struct {
	DomainSeparator common.Hash `json:"domainSeparator"`
	MessageHash     common.Hash `json:"messageHash"`
	Digest          common.Hash `json:"digest"`
}

var (
	whoFlag = &cli.StringFlag{
		Name:  "who",
		Usage: "caller account (0x-hex or SS58)",
	}
	callDataFlag = &cli.StringFlag{
		Name:     "calldata",
		Usage:    "hex encoded call data, see the encode command",
		Required: true,
	}
	nonceFlag = &cli.Uint64Flag{
		Name:  "nonce",
		Usage: "nonce of the caller",
	}
	tipFlag = &cli.StringFlag{
		Name:  "tip",
		Usage: "optional tip (plank, decimal)",
	}
	rlpFlag = &cli.BoolFlag{
		Name:  "rlp",
		Usage: "output the RLP encoding instead of JSON",
	}
)

var commandDigest = &cli.Command{
	Name:  "digest",
	Usage: "compute the EIP-712 digest of a meta transaction",
	Description: `
Print the domain separator, the SubstrateCall struct hash and the typed-data
digest an EVM wallet signs for the given caller, call data and nonce.`,
	Flags:  flags.Merge([]cli.Flag{whoFlag, callDataFlag, nonceFlag, jsonFlag}, utils.GatewayFlags),
	Action: digest,
}

var commandSign = &cli.Command{
	Name:  "sign",
	Usage: "sign a meta transaction",
	Description: `
Sign call data on behalf of the account derived from the signing key and
print the resulting meta transaction.`,
	Flags:  flags.Merge([]cli.Flag{callDataFlag, nonceFlag, tipFlag, rlpFlag}, keyFlags, utils.GatewayFlags),
	Action: sign,
}

func digest(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	if !ctx.IsSet(whoFlag.Name) {
		return fmt.Errorf("--%s is required", whoFlag.Name)
	}
	who, err := parseAccount(ctx.String(whoFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid caller: %v", err)
	}
	callData, err := hexutil.Decode(ctx.String(callDataFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid call data: %v", err)
	}
	var (
		domain    = eip712.DomainFromConfig(cfg.Gateway.EIP712)
		separator = eip712.DomainSeparator(domain)
		message   = eip712.MessageHash(who.SS58(cfg.Gateway.SS58Prefix), callData, ctx.Uint64(nonceFlag.Name))
		out       = outputDigest{
			DomainSeparator: separator,
			MessageHash:     message,
			Digest:          eip712.TypedDataHash(separator, message),
		}
	)
	if ctx.Bool(jsonFlag.Name) {
		return printJSON(ctx, out)
	}
	w := ctx.App.Writer
	fmt.Fprintln(w, "Domain separator:", out.DomainSeparator.Hex())
	fmt.Fprintln(w, "Message hash:    ", out.MessageHash.Hex())
	fmt.Fprintln(w, "Digest:          ", out.Digest.Hex())
	return nil
}

func sign(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	key, err := loadKey(ctx)
	if err != nil {
		return err
	}
	who, err := accountOf(key)
	if err != nil {
		return err
	}
	callData, err := hexutil.Decode(ctx.String(callDataFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid call data: %v", err)
	}
	tx := &types.MetaTransaction{Who: who, CallData: callData, Nonce: ctx.Uint64(nonceFlag.Name)}
	if ctx.IsSet(tipFlag.Name) {
		if tx.Tip, err = uint256.FromDecimal(ctx.String(tipFlag.Name)); err != nil {
			return fmt.Errorf("invalid tip: %v", err)
		}
	}
	if err := tx.SanityCheck(); err != nil {
		return err
	}
	if err := signMetaTransaction(tx, key, &cfg); err != nil {
		return err
	}
	if ctx.Bool(rlpFlag.Name) {
		enc, err := types.EncodeMetaTransaction(tx)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.App.Writer, hexutil.Encode(enc))
		return nil
	}
	return printJSON(ctx, tx)
}

// signMetaTransaction fills in the signature of tx. The recovery id is
// emitted in the 27/28 form EVM wallets produce.
func signMetaTransaction(tx *types.MetaTransaction, key *ecdsa.PrivateKey, cfg *metagateConfig) error {
	hasher := eip712.NewHasher(eip712.DomainFromConfig(cfg.Gateway.EIP712))
	sig, err := crypto.Sign(hasher.Digest(tx.Who.SS58(cfg.Gateway.SS58Prefix), tx.CallData, tx.Nonce).Bytes(), key)
	if err != nil {
		return err
	}
	sig[crypto.RecoveryIDOffset] += 27
	copy(tx.Signature[:], sig)
	return nil
}
