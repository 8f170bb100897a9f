package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tos-network/metagate/accountsigner"
	"github.com/tos-network/metagate/cmd/utils"
	"github.com/tos-network/metagate/core/types"
	"github.com/urfave/cli/v2"
)

type outputAccount struct {
	Account   string `json:"account"`
	SS58      string `json:"ss58"`
	EVM       string `json:"evm"`
	PublicKey string `json:"publicKey"`
}

var (
	privateKeyFlag = &cli.StringFlag{
		Name:  "privatekey",
		Usage: "file containing a raw hex private key",
	}
	keyfileFlag = &cli.StringFlag{
		Name:  "keyfile",
		Usage: "encrypted keystore file holding the signing key",
	}
	passphraseFlag = &cli.StringFlag{
		Name:  "passwordfile",
		Usage: "the file that contains the password for the keyfile",
	}
)

var keyFlags = []cli.Flag{privateKeyFlag, keyfileFlag, passphraseFlag}

var commandAccount = &cli.Command{
	Name:  "account",
	Usage: "derive the local account of an EVM key",
	Description: `
Print the local account controlled by a secp256k1 key: blake2b-256 of the
compressed public key, rendered in hex and SS58.

The key is read from --privatekey (raw hex) or --keyfile (encrypted keystore,
password from --passwordfile).`,
	Flags: append([]cli.Flag{jsonFlag, utils.SS58PrefixFlag}, keyFlags...),
	Action: func(ctx *cli.Context) error {
		key, err := loadKey(ctx)
		if err != nil {
			return err
		}
		who, err := accountOf(key)
		if err != nil {
			return err
		}
		out := outputAccount{
			Account:   who.Hex(),
			SS58:      who.SS58(uint16(ctx.Uint(utils.SS58PrefixFlag.Name))),
			EVM:       crypto.PubkeyToAddress(key.PublicKey).Hex(),
			PublicKey: hexutil.Encode(crypto.CompressPubkey(&key.PublicKey)),
		}
		if ctx.Bool(jsonFlag.Name) {
			return printJSON(ctx, out)
		}
		w := ctx.App.Writer
		fmt.Fprintln(w, "Account:   ", out.Account)
		fmt.Fprintln(w, "SS58:      ", out.SS58)
		fmt.Fprintln(w, "EVM:       ", out.EVM)
		fmt.Fprintln(w, "Public key:", out.PublicKey)
		return nil
	},
}

// loadKey reads the signing key named by the key flags.
func loadKey(ctx *cli.Context) (*ecdsa.PrivateKey, error) {
	switch {
	case ctx.IsSet(privateKeyFlag.Name) && ctx.IsSet(keyfileFlag.Name):
		return nil, errors.New("--privatekey and --keyfile can't be used at the same time")
	case ctx.IsSet(privateKeyFlag.Name):
		key, err := crypto.LoadECDSA(ctx.String(privateKeyFlag.Name))
		if err != nil {
			return nil, fmt.Errorf("can't load private key: %v", err)
		}
		return key, nil
	case ctx.IsSet(keyfileFlag.Name):
		keyjson, err := os.ReadFile(ctx.String(keyfileFlag.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to read the keyfile: %v", err)
		}
		passphrase, err := readPassphrase(ctx)
		if err != nil {
			return nil, err
		}
		key, err := keystore.DecryptKey(keyjson, passphrase)
		if err != nil {
			return nil, fmt.Errorf("error decrypting key: %v", err)
		}
		return key.PrivateKey, nil
	default:
		return nil, errors.New("a signing key is required (--privatekey or --keyfile)")
	}
}

func readPassphrase(ctx *cli.Context) (string, error) {
	file := ctx.String(passphraseFlag.Name)
	if file == "" {
		return "", nil
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read password file '%s': %v", file, err)
	}
	return strings.TrimRight(string(content), "\r\n"), nil
}

// accountOf derives the local account bound to key.
func accountOf(key *ecdsa.PrivateKey) (types.AccountID, error) {
	pub, err := accountsigner.ParsePubkey(crypto.CompressPubkey(&key.PublicKey))
	if err != nil {
		return types.AccountID{}, err
	}
	return accountsigner.AccountFromPubkey(pub)
}

// parseAccount accepts an account as 0x-hex or SS58.
func parseAccount(s string) (types.AccountID, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return types.HexToAccountID(s)
	}
	who, _, err := types.ParseSS58(s)
	return who, err
}

func printJSON(ctx *cli.Context, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON object: %v", err)
	}
	fmt.Fprintln(ctx.App.Writer, string(out))
	return nil
}
