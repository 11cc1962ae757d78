package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniredis/resp"
	"miniredis/store"
)

func frameCmd(parts ...string) resp.Frame {
	f := resp.ArrayOf()
	for _, p := range parts {
		f.PushBulk([]byte(p))
	}
	return f
}

func TestFromFrame_Get(t *testing.T) {
	cmd, err := FromFrame(frameCmd("GET", "foo"))
	require.NoError(t, err)
	assert.Equal(t, KindGet, cmd.Kind)
	assert.Equal(t, "foo", cmd.Key)
}

func TestFromFrame_SetPlain(t *testing.T) {
	cmd, err := FromFrame(frameCmd("set", "foo", "bar"))
	require.NoError(t, err)
	assert.Equal(t, KindSet, cmd.Kind)
	assert.Equal(t, []byte("bar"), cmd.Value)
	assert.Zero(t, cmd.Expiry)
}

func TestFromFrame_SetWithEX(t *testing.T) {
	cmd, err := FromFrame(frameCmd("set", "foo", "bar", "EX", "10"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cmd.Expiry)
}

func TestFromFrame_SetWithPX(t *testing.T) {
	cmd, err := FromFrame(frameCmd("set", "foo", "bar", "px", "250"))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cmd.Expiry)
}

func TestFromFrame_SetNXAndXXRejected(t *testing.T) {
	_, err := FromFrame(frameCmd("set", "foo", "bar", "NX", "XX"))
	assert.Error(t, err)
}

func TestFromFrame_SetUnknownOption(t *testing.T) {
	_, err := FromFrame(frameCmd("set", "foo", "bar", "WAT"))
	assert.Error(t, err)
}

func TestFromFrame_Publish(t *testing.T) {
	cmd, err := FromFrame(frameCmd("PUBLISH", "news", "hi"))
	require.NoError(t, err)
	assert.Equal(t, KindPublish, cmd.Kind)
	assert.Equal(t, "news", cmd.Channel)
	assert.Equal(t, []byte("hi"), cmd.Message)
}

func TestFromFrame_SubscribeRequiresChannel(t *testing.T) {
	_, err := FromFrame(frameCmd("subscribe"))
	assert.Error(t, err)
}

func TestFromFrame_SubscribeMultipleChannels(t *testing.T) {
	cmd, err := FromFrame(frameCmd("subscribe", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cmd.Channels)
}

func TestFromFrame_UnsubscribeEmptyChannelListAllowed(t *testing.T) {
	cmd, err := FromFrame(frameCmd("unsubscribe"))
	require.NoError(t, err)
	assert.Empty(t, cmd.Channels)
}

func TestFromFrame_UnknownCommand(t *testing.T) {
	cmd, err := FromFrame(frameCmd("frobnicate", "x"))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, cmd.Kind)
	assert.Equal(t, "frobnicate", cmd.Name)
}

func TestFromFrame_TrailingArgumentIsProtocolError(t *testing.T) {
	_, err := FromFrame(frameCmd("get", "foo", "bar"))
	assert.Error(t, err)
}

func TestApply_GetMiss(t *testing.T) {
	s := store.New(4)
	defer func() { s.Release(); s.Wait() }()

	frame := Apply(Command{Kind: KindGet, Key: "nope"}, s)
	assert.Equal(t, resp.KindNull, frame.Kind)
}

func TestApply_SetThenGet(t *testing.T) {
	s := store.New(4)
	defer func() { s.Release(); s.Wait() }()

	resp1 := Apply(Command{Kind: KindSet, Key: "foo", Value: []byte("bar")}, s)
	assert.True(t, resp1.EqualString("OK"))

	resp2 := Apply(Command{Kind: KindGet, Key: "foo"}, s)
	assert.True(t, resp2.EqualString("bar"))
}

func TestApply_SetNXOnExistingKeyIsNoop(t *testing.T) {
	s := store.New(4)
	defer func() { s.Release(); s.Wait() }()

	s.Set("foo", []byte("orig"), 0)
	frame := Apply(Command{Kind: KindSet, Key: "foo", Value: []byte("new"), NX: true}, s)
	assert.Equal(t, resp.KindNull, frame.Kind)

	v, _ := s.Get("foo")
	assert.Equal(t, []byte("orig"), v)
}

func TestApply_SetXXOnMissingKeyIsNoop(t *testing.T) {
	s := store.New(4)
	defer func() { s.Release(); s.Wait() }()

	frame := Apply(Command{Kind: KindSet, Key: "missing", Value: []byte("v"), XX: true}, s)
	assert.Equal(t, resp.KindNull, frame.Kind)

	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestApply_Publish(t *testing.T) {
	s := store.New(4)
	defer func() { s.Release(); s.Wait() }()

	frame := Apply(Command{Kind: KindPublish, Channel: "news", Message: []byte("hi")}, s)
	assert.Equal(t, resp.Integer(0), frame)
}

func TestApply_UnknownCommand(t *testing.T) {
	s := store.New(4)
	defer func() { s.Release(); s.Wait() }()

	frame := Apply(Command{Kind: KindUnknown, Name: "frobnicate"}, s)
	assert.Equal(t, resp.KindError, frame.Kind)
	assert.Contains(t, frame.Str, "frobnicate")
}
