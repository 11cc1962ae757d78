package resp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeBytes(t *testing.T, f Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, f))
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	cases := []Frame{
		Simple("OK"),
		Simple(""),
		Err("ERR unknown command 'ping'"),
		Integer(0),
		Integer(1000),
		BulkFrame([]byte("foobar")),
		BulkFrame([]byte("")),
		Null(),
		ArrayOf(BulkFrame([]byte("get")), BulkFrame([]byte("foo"))),
		Array0(),
	}

	for _, want := range cases {
		encoded := encodeBytes(t, want)

		require.NoError(t, Check(encoded))

		got, n, err := Parse(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, want, got)
	}
}

func TestCheck_IncompletePrefixes(t *testing.T) {
	full := encodeBytes(t, ArrayOf(BulkFrame([]byte("SET")), BulkFrame([]byte("k")), BulkFrame([]byte("v"))))

	for n := 0; n < len(full); n++ {
		err := Check(full[:n])
		assert.ErrorIs(t, err, ErrIncomplete, "prefix length %d should be incomplete", n)
	}

	require.NoError(t, Check(full))
}

func TestCheck_StopsAtFirstFrame(t *testing.T) {
	one := encodeBytes(t, Simple("OK"))
	two := encodeBytes(t, Integer(7))

	buf := append(append([]byte{}, one...), two...)

	require.NoError(t, Check(buf))

	frame, n, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, len(one), n)
	assert.Equal(t, Simple("OK"), frame)
}

func TestCheck_BulkToleratesEmbeddedCR(t *testing.T) {
	// A bulk payload containing a bare \r must not confuse line scanning,
	// since bulk frames are length-prefixed rather than line-scanned.
	payload := []byte("a\rb")
	f := BulkFrame(payload)
	encoded := encodeBytes(t, f)

	require.NoError(t, Check(encoded))
	got, _, err := Parse(encoded)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestCheck_InvalidLeadingByte(t *testing.T) {
	err := Check([]byte("?nonsense\r\n"))
	var invalidErr *ErrInvalid
	assert.ErrorAs(t, err, &invalidErr)
}

func TestEqualString(t *testing.T) {
	assert.True(t, Simple("OK").EqualString("OK"))
	assert.True(t, BulkFrame([]byte("news")).EqualString("news"))
	assert.False(t, Integer(1).EqualString("1"))
	assert.False(t, Null().EqualString(""))
}

func TestEncodeNestedArrayPanics(t *testing.T) {
	nested := ArrayOf(ArrayOf(Integer(1)))
	assert.Panics(t, func() {
		_ = Encode(&bytes.Buffer{}, nested)
	})
}
