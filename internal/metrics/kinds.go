package metrics

type MetricKind int

const (
	RegistryOpenLatency MetricKind = iota
	RegistryOpenFailures
	RegistryCloseLatency
	RegistryOpenEngines
	RegistryLegacyImportLatency

	StoreInsertLatency
	StoreInsertFailures
	StoreUpdateLatency
	StoreUpdateFailures
	StoreDeleteLatency
	StoreGrowCalls
	StoreRecordCount

	KeyIndexFindLatency

	InterruptHandleLatency
	InterruptHandleCalls
	InterruptUnsupportedOperations
	InterruptFailures
)
