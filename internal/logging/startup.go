package logging

import (
	"maps"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sections of the startup record, in emission order.
const (
	sectionProviders = "providers"
	sectionResources = "resources"
	sectionSSM       = "ssmParams"
	sectionFeatures  = "features"
	sectionConfig    = "config"
)

var sectionOrder = []string{sectionProviders, sectionResources, sectionSSM, sectionFeatures, sectionConfig}

// StartupLogger builds the one structured record an entry point emits once
// it is ready to serve: who is running, which providers have credentials,
// where results are stored, and which features are on. On Lambda this is
// the cold-start record.
type StartupLogger struct {
	name         string
	version      string
	initDuration time.Duration
	sections     map[string]map[string]any
}

// NewStartupLogger starts a record for the named entry point.
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{name: name, sections: map[string]map[string]any{}}
}

func (s *StartupLogger) set(section, key string, value any) *StartupLogger {
	if s.sections[section] == nil {
		s.sections[section] = map[string]any{}
	}
	s.sections[section][key] = value
	return s
}

// Version sets the build version.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Provider records whether the labelled provider has a credential.
func (s *StartupLogger) Provider(label string, configured bool) *StartupLogger {
	return s.set(sectionProviders, label, configured)
}

// Resource records an external resource such as a table name or Redis address.
func (s *StartupLogger) Resource(label, name string) *StartupLogger {
	return s.set(sectionResources, label, name)
}

// SSMParam records a parameter path. Values are never logged.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	return s.set(sectionSSM, label, path)
}

// Feature records a feature flag.
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	return s.set(sectionFeatures, name, enabled)
}

// Config records a non-sensitive setting.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	return s.set(sectionConfig, key, value)
}

// InitDuration records how long initialisation took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits the record at info level.
func (s *StartupLogger) Log() {
	s.event(log.Info()).Msg("Startup complete")
}

func (s *StartupLogger) event(evt *zerolog.Event) *zerolog.Event {
	process := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH)
	if s.version != "" {
		process.Str("version", s.version)
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		process.Str("functionName", fn).
			Str("functionVersion", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("region", os.Getenv("AWS_REGION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	}
	evt.Dict("process", process)

	for _, name := range sectionOrder {
		values := s.sections[name]
		if len(values) == 0 {
			continue
		}
		dict := zerolog.Dict()
		for _, k := range slices.Sorted(maps.Keys(values)) {
			switch v := values[k].(type) {
			case bool:
				dict.Bool(k, v)
			case string:
				dict.Str(k, v)
			default:
				dict.Interface(k, v)
			}
		}
		evt.Dict(name, dict)
	}

	if s.initDuration > 0 {
		evt.Dur("initDuration", s.initDuration)
	}
	return evt
}
