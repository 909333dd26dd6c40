package report

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveName_FirstCycleHasNoSuffix(t *testing.T) {
	assert.Equal(t, "Verlassene Mine", ResolveName(1))
	assert.Equal(t, "Thron des Raidfürsten", ResolveName(50))
}

func TestResolveName_LaterCyclesGetRomanSuffix(t *testing.T) {
	assert.Equal(t, "Verlassene Mine (II)", ResolveName(51))
	assert.Equal(t, "Thron des Raidfürsten (II)", ResolveName(100))
	assert.Equal(t, "Verlassene Mine (III)", ResolveName(101))
	assert.Equal(t, "Verlassene Mine (X)", ResolveName(451))
}

func TestResolveName_InvalidID(t *testing.T) {
	assert.Equal(t, "", ResolveName(0))
	assert.Equal(t, "", ResolveName(-3))
}

func TestResolveID_UnknownName(t *testing.T) {
	assert.Equal(t, 0, ResolveID("Gibt Es Nicht"))
	assert.Equal(t, 0, ResolveID(""))
}

func TestResolveID_RoundTrip(t *testing.T) {
	for id := 1; id <= 500; id++ {
		name := ResolveName(id)
		require.Equal(t, id, ResolveID(name), fmt.Sprintf("id %d via %q", id, name))
	}
}

func TestCompletedRaids(t *testing.T) {
	assert.Equal(t, 0, CompletedRaids(0))
	assert.Equal(t, 0, CompletedRaids(1))
	assert.Equal(t, 4, CompletedRaids(5))
	assert.Equal(t, 50, CompletedRaids(51))
	assert.Equal(t, 50, CompletedRaids(500))
}
