package resp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgParser_Basic(t *testing.T) {
	frame := ArrayOf(BulkFrame([]byte("SET")), BulkFrame([]byte("k")), Simple("v"), Integer(42))
	p, err := NewArgParser(frame)
	require.NoError(t, err)

	s, err := p.NextString()
	require.NoError(t, err)
	assert.Equal(t, "SET", s)

	b, err := p.NextBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("k"), b)

	s2, err := p.NextString()
	require.NoError(t, err)
	assert.Equal(t, "v", s2)

	n, err := p.NextInt()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	require.NoError(t, p.Finish())
}

func TestArgParser_EndOfStream(t *testing.T) {
	p, err := NewArgParser(ArrayOf(BulkFrame([]byte("GET"))))
	require.NoError(t, err)

	_, err = p.NextString()
	require.NoError(t, err)

	_, err = p.NextString()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestArgParser_FinishRejectsTrailing(t *testing.T) {
	p, err := NewArgParser(ArrayOf(BulkFrame([]byte("GET")), BulkFrame([]byte("k")), BulkFrame([]byte("extra"))))
	require.NoError(t, err)

	_, _ = p.NextString()
	_, _ = p.NextString()

	err = p.Finish()
	var invalidErr *ErrInvalid
	assert.ErrorAs(t, err, &invalidErr)
}

func TestArgParser_RequiresArray(t *testing.T) {
	_, err := NewArgParser(Simple("OK"))
	var invalidErr *ErrInvalid
	assert.ErrorAs(t, err, &invalidErr)
}

func TestArgParser_NextIntFromBulk(t *testing.T) {
	p, err := NewArgParser(ArrayOf(BulkFrame([]byte("100"))))
	require.NoError(t, err)

	n, err := p.NextInt()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), n)
}
