// Package config centralizes the configuration knobs enumerated in
// spec.md §6, loaded either from flags/environment in the style of
// gaspardpetit/nfrx's internal/config package, or from a YAML document in
// the style of nfrx's and strand-protocol-strand's use of gopkg.in/yaml.v3.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Options holds every configuration option from spec.md §6.
type Options struct {
	KeepaliveIntervalMs int64  `yaml:"keepalive_interval_ms"`
	MaxLifetimeMs       int64  `yaml:"max_lifetime_ms"`
	MetadataMIME        string `yaml:"metadata_mime"`
	DataMIME            string `yaml:"data_mime"`
	HonorLease          bool   `yaml:"honor_lease"`
	FragmentSizeBytes   int    `yaml:"fragment_size_bytes"`
	ReassemblyMaxBytes  int    `yaml:"reassembly_max_bytes"`
	SetupMetadata       []byte `yaml:"-"`
	SetupData           []byte `yaml:"-"`
}

const (
	defaultKeepaliveIntervalMs = 20000
	defaultMaxLifetimeMs       = 60000
	defaultMIME                = "application/binary"
	defaultFragmentSizeBytes   = 16 * 1024 * 1024
	defaultReassemblyMaxBytes  = 16 * 1024 * 1024
)

// Defaults returns the configuration defaults enumerated in spec.md §6.
func Defaults() Options {
	return Options{
		KeepaliveIntervalMs: defaultKeepaliveIntervalMs,
		MaxLifetimeMs:       defaultMaxLifetimeMs,
		MetadataMIME:        defaultMIME,
		DataMIME:            defaultMIME,
		HonorLease:          false,
		FragmentSizeBytes:   defaultFragmentSizeBytes,
		ReassemblyMaxBytes:  defaultReassemblyMaxBytes,
	}
}

// KeepaliveInterval returns the configured keepalive cadence as a
// time.Duration.
func (o Options) KeepaliveInterval() time.Duration {
	return time.Duration(o.KeepaliveIntervalMs) * time.Millisecond
}

// MaxLifetime returns the configured liveness deadline as a
// time.Duration.
func (o Options) MaxLifetime() time.Duration {
	return time.Duration(o.MaxLifetimeMs) * time.Millisecond
}

// FromEnv overlays environment-variable overrides onto Defaults(), in the
// nfrx internal/config BindFlags style (env var read first, flag bound
// second so command-line still wins if flag.Parse is called by main).
func FromEnv() Options {
	o := Defaults()
	o.KeepaliveIntervalMs = getEnvInt64("RSOCKET_KEEPALIVE_INTERVAL_MS", o.KeepaliveIntervalMs)
	o.MaxLifetimeMs = getEnvInt64("RSOCKET_MAX_LIFETIME_MS", o.MaxLifetimeMs)
	o.MetadataMIME = getEnv("RSOCKET_METADATA_MIME", o.MetadataMIME)
	o.DataMIME = getEnv("RSOCKET_DATA_MIME", o.DataMIME)
	o.HonorLease = getEnvBool("RSOCKET_HONOR_LEASE", o.HonorLease)
	o.FragmentSizeBytes = int(getEnvInt64("RSOCKET_FRAGMENT_SIZE_BYTES", int64(o.FragmentSizeBytes)))
	o.ReassemblyMaxBytes = int(getEnvInt64("RSOCKET_REASSEMBLY_MAX_BYTES", int64(o.ReassemblyMaxBytes)))
	return o
}

// BindFlags registers command-line flags for every option, seeded from
// FromEnv(), matching nfrx's ServerConfig.BindFlags pattern. Call
// flag.Parse() afterwards.
func BindFlags(o *Options) {
	*o = FromEnv()
	flag.Int64Var(&o.KeepaliveIntervalMs, "rsocket-keepalive-interval-ms", o.KeepaliveIntervalMs, "cadence of KEEPALIVE(R=1) frames")
	flag.Int64Var(&o.MaxLifetimeMs, "rsocket-max-lifetime-ms", o.MaxLifetimeMs, "liveness deadline for keepalive echoes")
	flag.StringVar(&o.MetadataMIME, "rsocket-metadata-mime", o.MetadataMIME, "negotiated metadata MIME type")
	flag.StringVar(&o.DataMIME, "rsocket-data-mime", o.DataMIME, "negotiated data MIME type")
	flag.BoolVar(&o.HonorLease, "rsocket-honor-lease", o.HonorLease, "enable lease-based request throttling")
	flag.IntVar(&o.FragmentSizeBytes, "rsocket-fragment-size-bytes", o.FragmentSizeBytes, "outbound fragmentation MTU; 0 disables fragmentation")
	flag.IntVar(&o.ReassemblyMaxBytes, "rsocket-reassembly-max-bytes", o.ReassemblyMaxBytes, "cap on pending fragment buffer per stream")
}

// Load parses a YAML document at path into an Options, overlaid onto
// Defaults() so an omitted field keeps its default.
func Load(path string) (Options, error) {
	o := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return o, err
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, err
	}
	return o, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
