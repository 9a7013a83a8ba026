package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})
	Logf("hello %d", 1)
	WithPrefix("bus-1")("crossed %s", "entry")
	assert.Equal(t, []string{"hello 1", "[bus-1] crossed entry"}, got)

	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted") })
}
