package logx_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/rsocket/rsocket-go-core/logx"
)

func TestConfigureLogLevel(t *testing.T) {
	logx.Configure("trace")
	assert.Equal(t, zerolog.TraceLevel, zerolog.GlobalLevel())

	logx.Configure("WARNING")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	logx.Configure("none")
	assert.Equal(t, zerolog.Disabled, zerolog.GlobalLevel())

	logx.Configure("bogus")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
