package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardis/xerrors"
)

type row struct {
	ID   int64  `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "json", "msgpack"} {
		s, err := New(name)
		require.NoError(t, err)

		data, err := s.Marshal(row{ID: 7, Name: "alice"})
		require.NoError(t, err)
		var got row
		require.NoError(t, s.Unmarshal(data, &got))
		assert.Equal(t, row{ID: 7, Name: "alice"}, got, name)
	}

	_, err := New("gob")
	assert.ErrorIs(t, err, ErrUnsupportedSerializer)
	assert.Equal(t, xerrors.CodeConfig, xerrors.GetCode(err))
}

func TestMessagePackIsSmaller(t *testing.T) {
	v := row{ID: 123456, Name: "a-reasonably-long-name"}
	j, err := JSONSerializer{}.Marshal(v)
	require.NoError(t, err)
	m, err := MessagePackSerializer{}.Marshal(v)
	require.NoError(t, err)
	assert.Less(t, len(m), len(j))
}
