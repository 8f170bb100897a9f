package main

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/tos-network/metagate/core"
	"github.com/tos-network/metagate/core/types"
)

// deferredTx is an admitted request waiting for its predecessor.
type deferredTx struct {
	index    int
	tx       *types.MetaTransaction
	requires []types.Tag
}

// scheduler executes admitted requests in nonce order. A request whose
// Requires are not provided yet is held back and validated again once
// they are; requests still waiting at the end are never executed.
type scheduler struct {
	gw     *core.Gateway
	source types.TxSource
	table  *tablewriter.Table

	provided mapset.Set[string]
	deferred []deferredTx

	admitted, rejected, failed int
}

func newScheduler(gw *core.Gateway, source types.TxSource, table *tablewriter.Table) *scheduler {
	return &scheduler{gw: gw, source: source, table: table, provided: mapset.NewThreadUnsafeSet[string]()}
}

func (s *scheduler) ready(requires []types.Tag) bool {
	for _, tag := range requires {
		if !s.provided.Contains(string(tag)) {
			return false
		}
	}
	return true
}

// submit admits tx and executes it, or defers it until its Requires are met.
func (s *scheduler) submit(index int, tx *types.MetaTransaction) {
	row := []string{fmt.Sprint(index), tx.Who.TerminalString(), fmt.Sprint(tx.Nonce)}
	valid, err := s.gw.Validate(s.source, tx)
	if err != nil {
		s.rejected++
		s.table.Append(append(row, "rejected: "+err.Error(), "", "", "", ""))
		return
	}
	if !s.ready(valid.Requires) {
		log.Debug("Deferred meta transaction", "index", index, "who", tx.Who.TerminalString(), "nonce", tx.Nonce)
		s.deferred = append(s.deferred, deferredTx{index: index, tx: tx, requires: valid.Requires})
		return
	}
	s.execute(row, tx, valid)
	s.release()
}

func (s *scheduler) execute(row []string, tx *types.MetaTransaction, valid *types.ValidTransaction) {
	s.admitted++
	row = append(row, "accepted", fmt.Sprint(valid.Priority))
	result, err := s.gw.Apply(tx)
	if err != nil {
		s.failed++
		log.Warn("Execution aborted", "index", row[0], "err", err)
		s.table.Append(append(row, "", "", "aborted: "+err.Error()))
		return
	}
	for _, tag := range valid.Provides {
		s.provided.Add(string(tag))
	}
	outcome := "ok"
	if result.Failed() {
		s.failed++
		outcome = "failed: " + result.Unwrap().Error()
	}
	s.table.Append(append(row, string(result.Action), result.ActualFee.Dec(), outcome))
}

// release revalidates deferred requests whose Requires became available.
func (s *scheduler) release() {
	for i := 0; i < len(s.deferred); {
		d := s.deferred[i]
		if !s.ready(d.requires) {
			i++
			continue
		}
		s.deferred = append(s.deferred[:i], s.deferred[i+1:]...)
		s.submit(d.index, d.tx)
		// submit may have released others; rescan from the start.
		i = 0
	}
}

// finish reports requests that never became executable.
func (s *scheduler) finish() int {
	for _, d := range s.deferred {
		row := []string{fmt.Sprint(d.index), d.tx.Who.TerminalString(), fmt.Sprint(d.tx.Nonce)}
		s.table.Append(append(row, "pending", "", "", "", "predecessor never executed"))
	}
	return len(s.deferred)
}
