package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/fatih/color"
	"github.com/holiman/uint256"
	"github.com/olekukonko/tablewriter"
	"github.com/tos-network/metagate/cmd/utils"
	"github.com/tos-network/metagate/core"
	"github.com/tos-network/metagate/core/types"
	"github.com/tos-network/metagate/internal/flags"
	"github.com/tos-network/metagate/metrics"
	"github.com/urfave/cli/v2"
)

var sourceFlag = &cli.StringFlag{
	Name:  "source",
	Usage: "Origin of the submitted requests (`local`, `in-block` or `external`)",
	Value: "local",
}

var commandSubmit = &cli.Command{
	Name:      "submit",
	Usage:     "admit and execute meta transactions against the configured ledger",
	ArgsUsage: "<txs.json>",
	Description: `
Read a JSON array of meta transactions (as printed by the sign command), run
each through admission and, when admitted, execution. Requests arriving ahead
of their predecessor are held back and run once it has executed; those still
waiting at the end are reported as pending. The ledger starts from the genesis
allocation of the configuration file; nonces persist in --datadir.`,
	Flags:  flags.Merge([]cli.Flag{sourceFlag}, utils.GatewayFlags),
	Action: submit,
}

func parseSource(s string) (types.TxSource, error) {
	for _, src := range []types.TxSource{types.TxSourceLocal, types.TxSourceInBlock, types.TxSourceExternal} {
		if src.String() == s {
			return src, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction source %q", s)
}

func loadTransactions(file string) ([]*types.MetaTransaction, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var txs []*types.MetaTransaction
	if err := json.Unmarshal(content, &txs); err != nil {
		return nil, fmt.Errorf("%s: %v", file, err)
	}
	return txs, nil
}

// eventLog collects everything the gateway posts on its feeds, in the
// order it was posted. The channels are unbuffered and drained by a single
// goroutine, so a Send returns only after its row is recorded.
type eventLog struct {
	rows [][]string
	subs event.SubscriptionScope
	quit chan struct{}
	done chan struct{}
}

func newEventLog(gw *core.Gateway) *eventLog {
	var (
		l        = &eventLog{quit: make(chan struct{}), done: make(chan struct{})}
		fees     = make(chan core.ServiceFeePaidEvent)
		paid     = make(chan core.TransactionFeePaidEvent)
		outcomes = make(chan core.ActionOutcomeEvent)
	)
	l.subs.Track(gw.SubscribeServiceFeePaid(fees))
	l.subs.Track(gw.SubscribeTransactionFeePaid(paid))
	l.subs.Track(gw.SubscribeActionOutcome(outcomes))

	go func() {
		defer close(l.done)
		for {
			select {
			case ev := <-fees:
				l.rows = append(l.rows, []string{"ServiceFeePaid", ev.Who.TerminalString(), fmt.Sprintf("fee=%v", ev.Fee)})
			case ev := <-paid:
				l.rows = append(l.rows, []string{"TransactionFeePaid", ev.Who.TerminalString(), fmt.Sprintf("fee=%v tip=%v", ev.ActualFee, ev.Tip)})
			case ev := <-outcomes:
				detail := "ok"
				if ev.Result != nil {
					detail = ev.Result.Error()
				}
				for _, inner := range ev.Events {
					detail += ", " + inner.EventName()
				}
				l.rows = append(l.rows, []string{"ActionOutcome", ev.Who.TerminalString(), fmt.Sprintf("%s: %s", ev.Action, detail)})
			case <-l.quit:
				return
			}
		}
	}()
	return l
}

// close stops all subscriptions and returns the recorded rows.
func (l *eventLog) close() [][]string {
	l.subs.Close()
	close(l.quit)
	<-l.done
	return l.rows
}

func submit(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected a transaction file, have %d arguments", ctx.NArg())
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	source, err := parseSource(ctx.String(sourceFlag.Name))
	if err != nil {
		return err
	}
	txs, err := loadTransactions(ctx.Args().First())
	if err != nil {
		return err
	}
	db, err := utils.OpenNonceDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := makeLedger(&cfg)
	gw, err := core.NewGateway(&cfg.Gateway, core.Collaborators{Ledger: ledger, Nonces: db})
	if err != nil {
		return err
	}
	events := newEventLog(gw)

	w := ctx.App.Writer
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Who", "Nonce", "Admission", "Priority", "Action", "Fee", "Outcome"})
	sched := newScheduler(gw, source, table)
	for i, tx := range txs {
		sched.submit(i, tx)
	}
	pending := sched.finish()
	table.Render()
	fmt.Fprintf(w, "%s, %s, %s, %s\n",
		color.GreenString("%d admitted", sched.admitted), color.RedString("%d rejected", sched.rejected),
		color.YellowString("%d failed", sched.failed), color.CyanString("%d pending", pending))

	rows := events.close()
	if len(rows) > 0 {
		fmt.Fprintln(w)
		evtable := tablewriter.NewWriter(w)
		evtable.SetHeader([]string{"Event", "Who", "Detail"})
		evtable.AppendBulk(rows)
		evtable.Render()
	}
	fmt.Fprintln(w)
	writeBalances(w, ledger.Accounts())

	switch {
	case gethmetrics.Enabled:
		fmt.Fprintln(w)
		metrics.WriteTable(w, gethmetrics.DefaultRegistry, cfg.Metrics.Prefix)
	case cfg.Metrics.Enabled:
		log.Warn("Metrics requested in config but collection is off, pass --metrics")
	}
	return nil
}

func writeBalances(w io.Writer, accounts map[types.AccountID]*uint256.Int) {
	ids := make([]types.AccountID, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Account", "Balance"})
	for _, id := range ids {
		table.Append([]string{id.Hex(), accounts[id].Dec()})
	}
	table.Render()
}
