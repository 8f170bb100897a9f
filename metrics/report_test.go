package metrics

import (
	"bytes"
	"strings"
	"testing"

	gethmetrics "github.com/ethereum/go-ethereum/metrics"
)

func TestCollectFiltersAndSorts(t *testing.T) {
	r := gethmetrics.NewRegistry()
	gethmetrics.NewRegisteredCounterForced("metagate/fees/service", r).Inc(7)
	meter := gethmetrics.NewMeterForced()
	defer meter.Stop()
	meter.Mark(3)
	r.Register("metagate/admission/accepted", meter)
	gethmetrics.NewRegisteredCounterForced("other/ignored", r).Inc(1)

	rows := Collect(r, DefaultConfig.Prefix)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, have %+v", rows)
	}
	if rows[0].Name != "metagate/admission/accepted" || rows[0].Kind != "meter" || rows[0].Count != 3 {
		t.Fatalf("unexpected meter row %+v", rows[0])
	}
	if rows[1].Name != "metagate/fees/service" || rows[1].Kind != "counter" || rows[1].Count != 7 {
		t.Fatalf("unexpected counter row %+v", rows[1])
	}

	var out bytes.Buffer
	WriteTable(&out, r, DefaultConfig.Prefix)
	if !strings.Contains(out.String(), "fees/service") || strings.Contains(out.String(), "ignored") {
		t.Fatalf("unexpected table:\n%s", out.String())
	}
}
