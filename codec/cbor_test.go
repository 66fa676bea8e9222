package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type row struct {
	ID    string
	Seq   uint64
	At    time.Time
	Flags map[string]bool
}

func TestCodec_Deterministic(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	r := row{ID: "m-1", Seq: 7, At: at, Flags: map[string]bool{"b": true, "a": false}}

	// When the same row is encoded twice
	first, err := Marshal(r)
	req.NoError(err)
	second, err := Marshal(r)
	req.NoError(err)

	// Then the bytes are identical
	req.Equal(first, second)

	// And the nanoseconds survive decoding
	var decoded row
	req.NoError(Unmarshal(first, &decoded))
	req.True(at.Equal(decoded.At))
	req.Equal(r.Seq, decoded.Seq)
}
