// Copyright 2015 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// Package utils contains internal helper functions for metagate commands.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/tos-network/metagate/internal/flags"
	"github.com/tos-network/metagate/params"
	"github.com/urfave/cli/v2"
)

// These are all the command line flags we support.
// If you add to this list, please remember to include the
// flag in the appropriate command definition.
//
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	// General settings
	ConfigFileFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "TOML configuration file",
		Category: flags.GatewayCategory,
	}
	DataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Data directory for the nonce database (empty = in-memory)",
		Category: flags.GatewayCategory,
	}
	AdmissionFlag = &cli.StringFlag{
		Name:     "admission",
		Usage:    "Admission mode (`commit-on-check` or `dry-run`)",
		Category: flags.GatewayCategory,
	}
	AllowedActionsFlag = &cli.StringFlag{
		Name:     "allow",
		Usage:    "Comma separated list of action kinds callers may dispatch",
		Category: flags.GatewayCategory,
	}
	SS58PrefixFlag = &cli.UintFlag{
		Name:     "ss58prefix",
		Usage:    "SS58 address prefix used to render callers",
		Value:    uint(params.DefaultConfig.SS58Prefix),
		Category: flags.AccountCategory,
	}

	// EIP-712 domain
	DomainNameFlag = &cli.StringFlag{
		Name:     "domain.name",
		Usage:    "EIP-712 domain name",
		Category: flags.DomainCategory,
	}
	DomainVersionFlag = &cli.StringFlag{
		Name:     "domain.version",
		Usage:    "EIP-712 domain version",
		Category: flags.DomainCategory,
	}
	DomainChainIDFlag = &cli.Uint64Flag{
		Name:     "domain.chainid",
		Usage:    "EIP-712 domain chain id",
		Category: flags.DomainCategory,
	}
	DomainContractFlag = &cli.StringFlag{
		Name:     "domain.contract",
		Usage:    "EIP-712 verifying contract address",
		Category: flags.DomainCategory,
	}

	// Fees
	ServiceFeeFlag = &cli.StringFlag{
		Name:     "fee.service",
		Usage:    "Flat service fee withdrawn at admission (plank, decimal)",
		Category: flags.FeeCategory,
	}

	// Logging and debug settings
	VerbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	LogNoColorFlag = &cli.BoolFlag{
		Name:     "log.nocolor",
		Usage:    "Disable terminal colors in log output",
		Category: flags.LoggingCategory,
	}

	// Metrics flags
	MetricsEnabledFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: flags.MetricsCategory,
	}
)

var (
	// GatewayFlags are the flags overlaying the configuration file.
	GatewayFlags = []cli.Flag{
		ConfigFileFlag,
		DataDirFlag,
		AdmissionFlag,
		AllowedActionsFlag,
		SS58PrefixFlag,
		DomainNameFlag,
		DomainVersionFlag,
		DomainChainIDFlag,
		DomainContractFlag,
		ServiceFeeFlag,
	}
	// LoggingFlags configure the process logger.
	LoggingFlags = []cli.Flag{
		VerbosityFlag,
		LogNoColorFlag,
		MetricsEnabledFlag,
	}
)

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		// stdout is unlikely to get redirected though, so just print there.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	fmt.Fprintf(w, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// SetupLogging installs a terminal log handler at the requested verbosity.
func SetupLogging(ctx *cli.Context) {
	usecolor := !ctx.Bool(LogNoColorFlag.Name) &&
		(isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) &&
		os.Getenv("TERM") != "dumb"
	output := io.Writer(os.Stderr)
	if usecolor {
		output = colorable.NewColorableStderr()
	}
	level := log.FromLegacyLevel(ctx.Int(VerbosityFlag.Name))
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(output, level, usecolor)))
}

// SetGatewayConfig applies gateway-related command line flags to the config.
func SetGatewayConfig(ctx *cli.Context, cfg *params.Config) error {
	if ctx.IsSet(AdmissionFlag.Name) {
		cfg.Admission = params.AdmissionMode(ctx.String(AdmissionFlag.Name))
	}
	if ctx.IsSet(AllowedActionsFlag.Name) {
		cfg.AllowedActions = SplitAndTrim(ctx.String(AllowedActionsFlag.Name))
	}
	if ctx.IsSet(SS58PrefixFlag.Name) {
		cfg.SS58Prefix = uint16(ctx.Uint(SS58PrefixFlag.Name))
	}
	if ctx.IsSet(DomainNameFlag.Name) {
		cfg.EIP712.Name = ctx.String(DomainNameFlag.Name)
	}
	if ctx.IsSet(DomainVersionFlag.Name) {
		cfg.EIP712.Version = ctx.String(DomainVersionFlag.Name)
	}
	if ctx.IsSet(DomainChainIDFlag.Name) {
		cfg.EIP712.ChainID = uint256.NewInt(ctx.Uint64(DomainChainIDFlag.Name))
	}
	if ctx.IsSet(DomainContractFlag.Name) {
		addr := ctx.String(DomainContractFlag.Name)
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid verifying contract %q", addr)
		}
		cfg.EIP712.VerifyingContract = common.HexToAddress(addr)
	}
	if ctx.IsSet(ServiceFeeFlag.Name) {
		fee, err := uint256.FromDecimal(ctx.String(ServiceFeeFlag.Name))
		if err != nil {
			return fmt.Errorf("invalid service fee: %v", err)
		}
		cfg.ServiceFee = fee
	}
	return cfg.CheckConfig()
}

// OpenNonceDatabase opens the nonce store below --datadir, or an in-memory
// store when no directory was given.
func OpenNonceDatabase(ctx *cli.Context) (ethdb.KeyValueStore, error) {
	dir := ctx.String(DataDirFlag.Name)
	if dir == "" {
		log.Info("Using in-memory nonce database")
		return memorydb.New(), nil
	}
	path := filepath.Join(dir, "nonces")
	log.Info("Opening nonce database", "path", path)
	return rawdb.NewLevelDBDatabase(path, 16, 16, "metagate/db/nonces/", false)
}

// SplitAndTrim splits input separated by a comma
// and trims excessive white space from the substrings.
func SplitAndTrim(input string) (ret []string) {
	l := strings.Split(input, ",")
	for _, r := range l {
		if r = strings.TrimSpace(r); r != "" {
			ret = append(ret, r)
		}
	}
	return ret
}
