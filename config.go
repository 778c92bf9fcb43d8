package content

import "github.com/goliatone/go-content/internal/runtimeconfig"

var (
	ErrSourcesRequired        = runtimeconfig.ErrSourcesRequired
	ErrSourceNameRequired     = runtimeconfig.ErrSourceNameRequired
	ErrSourceNameDuplicate    = runtimeconfig.ErrSourceNameDuplicate
	ErrSourceRootRequired     = runtimeconfig.ErrSourceRootRequired
	ErrDefaultLocaleUnknown   = runtimeconfig.ErrDefaultLocaleUnknown
	ErrTOCDepthInvalid        = runtimeconfig.ErrTOCDepthInvalid
	ErrCSVDelimiterInvalid    = runtimeconfig.ErrCSVDelimiterInvalid
	ErrWorkersInvalid         = runtimeconfig.ErrWorkersInvalid
	ErrDebounceInvalid        = runtimeconfig.ErrDebounceInvalid
	ErrCacheTTLInvalid        = runtimeconfig.ErrCacheTTLInvalid
	ErrStorageDSNRequired     = runtimeconfig.ErrStorageDSNRequired
	ErrHTTPBasePathInvalid    = runtimeconfig.ErrHTTPBasePathInvalid
	ErrLoggingProviderUnknown = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid    = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid   = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config         = runtimeconfig.Config
	SourceConfig   = runtimeconfig.SourceConfig
	MarkdownConfig = runtimeconfig.MarkdownConfig
	CSVConfig      = runtimeconfig.CSVConfig
	PipelineConfig = runtimeconfig.PipelineConfig
	WatcherConfig  = runtimeconfig.WatcherConfig
	QueryConfig    = runtimeconfig.QueryConfig
	StorageConfig  = runtimeconfig.StorageConfig
	HTTPConfig     = runtimeconfig.HTTPConfig
	LoggingConfig  = runtimeconfig.LoggingConfig
	Duration       = runtimeconfig.Duration
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig reads a TOML file layered over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.LoadFile(path)
}
