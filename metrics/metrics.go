package metrics

import (
	"sync/atomic"

	"github.com/heyvito/btrieve/internal/metrics"
)

var hasDelegate atomic.Bool

// InstallDelegate starts forwarding internal readings to the provided
// delegates. Only the first installed delegate is used.
func InstallDelegate(del *Delegates) {
	if hasDelegate.Swap(true) {
		return
	}
	go metrics.Dispatch(del)
}

type Delegates struct {
	Registry  RegistryInstrumentationDelegate
	Store     StoreInstrumentationDelegate
	Interrupt InterruptInstrumentationDelegate
}

func (d *Delegates) Dispatch(kind metrics.MetricKind, value float64) {
	switch kind {
	case metrics.RegistryOpenLatency:
		d.Registry.OpenLatency(value)
	case metrics.RegistryOpenFailures:
		d.Registry.OpenFailures(value)
	case metrics.RegistryCloseLatency:
		d.Registry.CloseLatency(value)
	case metrics.RegistryOpenEngines:
		d.Registry.OpenEngines(value)
	case metrics.RegistryLegacyImportLatency:
		d.Registry.LegacyImportLatency(value)
	case metrics.StoreInsertLatency:
		d.Store.InsertLatency(value)
	case metrics.StoreInsertFailures:
		d.Store.InsertFailures(value)
	case metrics.StoreUpdateLatency:
		d.Store.UpdateLatency(value)
	case metrics.StoreUpdateFailures:
		d.Store.UpdateFailures(value)
	case metrics.StoreDeleteLatency:
		d.Store.DeleteLatency(value)
	case metrics.StoreGrowCalls:
		d.Store.GrowCalls(value)
	case metrics.StoreRecordCount:
		d.Store.RecordCount(value)
	case metrics.KeyIndexFindLatency:
		d.Store.KeyIndexFindLatency(value)
	case metrics.InterruptHandleLatency:
		d.Interrupt.HandleLatency(value)
	case metrics.InterruptHandleCalls:
		d.Interrupt.HandleCalls(value)
	case metrics.InterruptUnsupportedOperations:
		d.Interrupt.UnsupportedOperations(value)
	case metrics.InterruptFailures:
		d.Interrupt.Failures(value)
	}
}

type RegistryInstrumentationDelegate interface {
	OpenLatency(float64)
	OpenFailures(float64)
	CloseLatency(float64)
	OpenEngines(float64)
	LegacyImportLatency(float64)
}

type StoreInstrumentationDelegate interface {
	InsertLatency(float64)
	InsertFailures(float64)
	UpdateLatency(float64)
	UpdateFailures(float64)
	DeleteLatency(float64)
	GrowCalls(float64)
	RecordCount(float64)
	KeyIndexFindLatency(float64)
}

type InterruptInstrumentationDelegate interface {
	HandleLatency(float64)
	HandleCalls(float64)
	UnsupportedOperations(float64)
	Failures(float64)
}
