package internal

import "github.com/go-stdlog/stdlog"

type Config interface {
	GetDataDir() string
	GetInitialCapacity() int
	GetLegacyImport() bool
	GetLogger() stdlog.Logger
}
