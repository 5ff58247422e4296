package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeParse_RoundTrip(t *testing.T) {
	body := []byte("hello world")
	raw := Serialize(PhaseFile, WRITE, 1, 2, body)

	dec := NewDecoder()
	dec.Feed(raw)
	f, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, PhaseFile, f.Phase)
	assert.Equal(t, WRITE, f.Type)
	assert.EqualValues(t, 1, f.IDDst)
	assert.EqualValues(t, 2, f.IDSrc)
	assert.Equal(t, body, f.Body)
}

func TestDecoder_Concatenation(t *testing.T) {
	one := Serialize(PhaseSession, CONNECT, 0, 0, []byte("a"))
	two := Serialize(PhaseSession, ACONNECT, 0, 0, []byte("bb"))

	dec := NewDecoder()
	dec.Feed(append(append([]byte{}, one...), two...))

	f1, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, CONNECT, f1.Type)

	f2, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ACONNECT, f2.Type)

	_, ok, err = dec.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecoder_PartialFrameAcrossFeeds(t *testing.T) {
	raw := Serialize(PhaseFile, READ, 0, 0, []byte("payload"))

	dec := NewDecoder()
	dec.Feed(raw[:3])
	_, ok, err := dec.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	dec.Feed(raw[3:])
	f, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, READ, f.Type)
}

func TestDecoder_LengthTooShort(t *testing.T) {
	dec := NewDecoder()
	dec.Feed([]byte{0x00, 0x03, 0x00, 0x00})
	_, _, err := dec.Next()
	require.Error(t, err)
}

func TestDecoder_UnknownFpdu(t *testing.T) {
	dec := NewDecoder()
	dec.Feed(Serialize(PhaseFile, Type(0x7E), 0, 0, nil))
	_, _, err := dec.Next()
	require.Error(t, err)
}

func TestFrameReader_ReadsFromStream(t *testing.T) {
	raw := append(
		Serialize(PhaseSession, CONNECT, 0, 0, []byte("x")),
		Serialize(PhaseSession, RELEASE, 0, 0, nil)...,
	)
	fr := NewFrameReader(bytes.NewReader(raw))

	f1, err := fr.ReadFpdu()
	require.NoError(t, err)
	assert.Equal(t, CONNECT, f1.Type)

	f2, err := fr.ReadFpdu()
	require.NoError(t, err)
	assert.Equal(t, RELEASE, f2.Type)
}

func TestMinLengthBoundary(t *testing.T) {
	// length == 6 (empty body) must round-trip cleanly.
	raw := Serialize(PhaseFile, DTF_END, 0, 0, nil)
	assert.Len(t, raw, 6)

	dec := NewDecoder()
	dec.Feed(raw)
	f, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, f.Body)
}
