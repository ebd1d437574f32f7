package arraystream

import (
	"log/slog"
	"maps"
	"strconv"
	"strings"
)

// Recognized platform configuration keys.
const (
	ConfigInitBufferBytes    = "soma.init_buffer_bytes"
	ConfigComputeConcurrency = "sm.compute_concurrency_level"
	ConfigIOConcurrency      = "sm.io_concurrency_level"
	ConfigMemoryBudgetBytes  = "soma.memory_budget_bytes"
	ConfigIOBytesPerSec      = "soma.io_bytes_per_sec"
	ConfigLoggingLevel       = "config.logging_level"
)

const (
	// DefaultInitBufferBytes is the default per-reader batch budget.
	DefaultInitBufferBytes = 64 << 20
	// DefaultConcurrencyLevel is the default compute and IO concurrency.
	DefaultConcurrencyLevel = 10
)

// PlatformConfig is the typed form of a platform configuration map.
//
// Unknown keys are kept in Extra and handed to the array store verbatim.
type PlatformConfig struct {
	InitBufferBytes    int64
	ComputeConcurrency int
	IOConcurrency      int
	// MemoryBudgetBytes bounds the sum of reserved read buffers. Zero means
	// unlimited.
	MemoryBudgetBytes int64
	// IOBytesPerSec limits fetched fragment bytes. Zero means unlimited.
	IOBytesPerSec int64
	// LogLevel is set when config.logging_level enables logging.
	LogLevel *slog.Level
	Extra    map[string]string
}

// DefaultPlatformConfig returns the configuration used for absent keys.
func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		InitBufferBytes:    DefaultInitBufferBytes,
		ComputeConcurrency: DefaultConcurrencyLevel,
		IOConcurrency:      DefaultConcurrencyLevel,
	}
}

// ParsePlatformConfig builds a PlatformConfig from m over the defaults.
func ParsePlatformConfig(m map[string]string) (PlatformConfig, error) {
	return DefaultPlatformConfig().Merge(m)
}

// Merge returns p with the keys of m applied on top.
func (p PlatformConfig) Merge(m map[string]string) (PlatformConfig, error) {
	out := p
	out.Extra = maps.Clone(p.Extra)

	for key, value := range m {
		var err error
		switch key {
		case ConfigInitBufferBytes:
			out.InitBufferBytes, err = parseInt(key, value, 1)
		case ConfigComputeConcurrency:
			var n int64
			n, err = parseInt(key, value, 1)
			out.ComputeConcurrency = int(n)
		case ConfigIOConcurrency:
			var n int64
			n, err = parseInt(key, value, 1)
			out.IOConcurrency = int(n)
		case ConfigMemoryBudgetBytes:
			out.MemoryBudgetBytes, err = parseInt(key, value, 0)
		case ConfigIOBytesPerSec:
			out.IOBytesPerSec, err = parseInt(key, value, 0)
		case ConfigLoggingLevel:
			out.LogLevel, err = parseLogLevel(value)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]string)
			}
			out.Extra[key] = value
		}
		if err != nil {
			return PlatformConfig{}, err
		}
	}
	return out, nil
}

// Map returns p as a configuration map.
func (p PlatformConfig) Map() map[string]string {
	m := maps.Clone(p.Extra)
	if m == nil {
		m = make(map[string]string)
	}
	m[ConfigInitBufferBytes] = strconv.FormatInt(p.InitBufferBytes, 10)
	m[ConfigComputeConcurrency] = strconv.Itoa(p.ComputeConcurrency)
	m[ConfigIOConcurrency] = strconv.Itoa(p.IOConcurrency)
	m[ConfigMemoryBudgetBytes] = strconv.FormatInt(p.MemoryBudgetBytes, 10)
	m[ConfigIOBytesPerSec] = strconv.FormatInt(p.IOBytesPerSec, 10)
	if p.LogLevel != nil {
		m[ConfigLoggingLevel] = strings.ToLower(p.LogLevel.String())
	}
	return m
}

// indexThreads is the default index thread count for this configuration.
func (p PlatformConfig) indexThreads() int {
	return max(1, p.ComputeConcurrency/2)
}

func parseInt(key, value string, minValue int64) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, &ErrInvalidConfig{Key: key, Value: value, cause: err}
	}
	if n < minValue {
		return 0, &ErrInvalidConfig{Key: key, Value: value}
	}
	return n, nil
}

// parseLogLevel accepts numeric levels 0 (off) to 5 or a level name.
func parseLogLevel(value string) (*slog.Level, error) {
	var level slog.Level
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "off", "":
		return nil, nil
	case "1", "fatal", "error":
		level = slog.LevelError
	case "2", "warn", "warning":
		level = slog.LevelWarn
	case "3", "info":
		level = slog.LevelInfo
	case "4", "5", "debug", "trace":
		level = slog.LevelDebug
	default:
		return nil, &ErrInvalidConfig{Key: ConfigLoggingLevel, Value: value}
	}
	return &level, nil
}
