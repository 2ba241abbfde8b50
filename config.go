package btrieve

import "github.com/go-stdlog/stdlog"

type Config struct {
	// DataDir is the directory holding the files guest programs open. Names
	// are resolved against it ignoring case. The directory is locked for the
	// lifetime of the Registry, as a single process must manage its files.
	DataDir string

	// InitialCapacity is the amount of record slots preallocated when a new
	// data file is created. Files grow past it automatically. Defaults to 64.
	InitialCapacity int

	// DisableLegacyImport prevents .DAT (and .VIR) files from being converted
	// when no data file exists for a requested name.
	DisableLegacyImport bool

	// Logger allows a given stdlog.Logger instance to be set as the system
	// logger. If unset, no logs will be generated.
	Logger stdlog.Logger
}

func (c Config) GetDataDir() string {
	return c.DataDir
}

func (c Config) GetInitialCapacity() int {
	return c.InitialCapacity
}

func (c Config) GetLegacyImport() bool {
	return !c.DisableLegacyImport
}

func (c Config) GetLogger() stdlog.Logger {
	if c.Logger != nil {
		return c.Logger.Named("btrieve")
	}
	return stdlog.Discard
}
