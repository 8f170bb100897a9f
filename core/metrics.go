package core

import "github.com/ethereum/go-ethereum/metrics"

var (
	admissionAcceptedMeter  = metrics.NewRegisteredMeter("metagate/admission/accepted", nil)
	admissionRejectedMeter  = metrics.NewRegisteredMeter("metagate/admission/rejected", nil)
	admissionStaleMeter     = metrics.NewRegisteredMeter("metagate/admission/stale", nil)
	admissionFutureMeter    = metrics.NewRegisteredMeter("metagate/admission/future", nil)
	executionSucceededMeter = metrics.NewRegisteredMeter("metagate/execution/succeeded", nil)
	executionFailedMeter    = metrics.NewRegisteredMeter("metagate/execution/failed", nil)
	executionAbortedMeter   = metrics.NewRegisteredMeter("metagate/execution/aborted", nil)

	serviceFeeCounter = metrics.NewRegisteredCounter("metagate/fees/service", nil)
)
