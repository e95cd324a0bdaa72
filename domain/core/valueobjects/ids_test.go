package valueobjects

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryID(t *testing.T) {
	id := NewMemoryID()

	assert.NotEmpty(t, id.String())
	assert.False(t, id.IsEmpty())

	_, err := uuid.Parse(id.String())
	assert.NoError(t, err)
}

func TestParseMemoryID(t *testing.T) {
	valid := uuid.New().String()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid uuid", valid, false},
		{"empty string", "", true},
		{"not a uuid", "not-a-uuid", true},
		{"whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseMemoryID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, valid, id.String())
		})
	}
}

func TestMemoryIDEquals(t *testing.T) {
	a := NewMemoryID()
	b, err := ParseMemoryID(a.String())
	require.NoError(t, err)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(NewMemoryID()))
}

func TestNewUserID(t *testing.T) {
	id, err := NewUserID("  alice  ")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.String())

	_, err = NewUserID("")
	assert.Error(t, err)

	_, err = NewUserID(string(make([]byte, 200)))
	assert.Error(t, err)
}

func TestNewDeviceID(t *testing.T) {
	id, err := NewDeviceID("phone-1")
	require.NoError(t, err)
	assert.Equal(t, "phone-1", id.String())

	_, err = NewDeviceID("   ")
	assert.Error(t, err)
}
