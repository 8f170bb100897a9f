package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"unicode"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/naoina/toml"
	"github.com/tos-network/metagate/balances"
	"github.com/tos-network/metagate/cmd/utils"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/metrics"
	"github.com/tos-network/metagate/params"
	"github.com/urfave/cli/v2"
)

var dumpConfigCommand = &cli.Command{
	Action:      dumpConfig,
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "[ <file> ]",
	Flags:       utils.GatewayFlags,
	Description: `The dumpconfig command shows configuration values.`,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// GenesisAccount funds an account when the ledger is created.
type GenesisAccount struct {
	Account types.AccountID
	Balance *uint256.Int
	Frozen  *uint256.Int `toml:",omitempty"`
}

type metagateConfig struct {
	Gateway params.Config
	Metrics metrics.Config
	Genesis []GenesisAccount `toml:",omitempty"`
}

func loadConfig(file string, cfg *metagateConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

func defaultConfig() metagateConfig {
	return metagateConfig{
		Gateway: *params.DefaultConfig.Copy(),
		Metrics: metrics.DefaultConfig,
	}
}

// makeConfig loads the configuration file and applies the command line
// overrides on top of it.
func makeConfig(ctx *cli.Context) (metagateConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(utils.ConfigFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := utils.SetGatewayConfig(ctx, &cfg.Gateway); err != nil {
		return cfg, err
	}
	if ctx.IsSet(utils.MetricsEnabledFlag.Name) {
		cfg.Metrics.Enabled = ctx.Bool(utils.MetricsEnabledFlag.Name)
	}
	return cfg, nil
}

// makeLedger builds the in-memory ledger and applies the genesis allocation.
func makeLedger(cfg *metagateConfig) *balances.Memory {
	ledger := balances.NewMemory(cfg.Gateway.ExistentialDeposit)
	for _, acc := range cfg.Genesis {
		if acc.Balance == nil {
			continue
		}
		ledger.SetBalance(acc.Account, acc.Balance)
		if acc.Frozen != nil {
			ledger.Freeze(acc.Account, acc.Frozen)
		}
		log.Debug("Funded genesis account", "who", acc.Account.TerminalString(), "balance", acc.Balance)
	}
	return ledger
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	io.WriteString(dump, "# Note: this config doesn't contain the genesis allocation.\n\n")
	_, err = dump.Write(out)
	return err
}
