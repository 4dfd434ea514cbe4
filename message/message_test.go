package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualNormalizesNumbers(t *testing.T) {
	// Values coming from encoding/json are float64, values set in code are
	// usually int: they must compare equal.
	assert.True(t, Equal(1, float64(1)))
	assert.True(t, Equal(float64(28), 28))
	assert.False(t, Equal(1, 2))
	assert.True(t, Equal("cold", "cold"))
	assert.False(t, Equal("cold", 1))
	assert.True(t, Equal(true, true))
	assert.False(t, Equal(true, 1))
	assert.True(t, Equal(nil, nil))
}

func TestValuesEqual(t *testing.T) {
	var decoded Values
	require.NoError(t, json.Unmarshal([]byte(`{"1":true,"2":280}`), &decoded))
	assert.True(t, decoded.Equal(Values{"1": true, "2": 280}))
	assert.False(t, decoded.Equal(Values{"1": true}))
	assert.False(t, decoded.Equal(Values{"1": true, "2": 281}))
}

func TestValuesMerge(t *testing.T) {
	base := Values{"1": true, "2": 280}
	merged := base.Merge(Values{"2": 290, "3": "auto"})
	assert.True(t, merged.Equal(Values{"1": true, "2": 290, "3": "auto"}))
	// Inputs are untouched.
	assert.True(t, base.Equal(Values{"1": true, "2": 280}))
}

func TestUpdateCommandPayload(t *testing.T) {
	cmd := UpdateCommand{Values: Values{"1": 1}}
	body, err := json.Marshal(cmd.Payload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"dps":{"1":1}}`, string(body))
}

func TestCommandKind(t *testing.T) {
	assert.Equal(t, KindNone, CommandKind(KindStatus))
	assert.Equal(t, KindUpdate, CommandKind(KindUpdate))
	assert.Equal(t, KindHeartbeat, CommandKind(KindHeartbeat))
	assert.Equal(t, KindState, CommandKind(KindState))
}
