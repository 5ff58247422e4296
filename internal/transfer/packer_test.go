package transfer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesit-e/pesitengine/internal/wire"
)

func TestPacker_SingleRecordIsPlainDTF(t *testing.T) {
	p := NewPacker(512)
	articles, err := p.Pack([][]byte{bytes.Repeat([]byte{'a'}, 100)})
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, wire.DTF, articles[0].Type)
	assert.Equal(t, byte(0), articles[0].IDSrc)
}

func TestPacker_GroupsRecordsIntoEntities(t *testing.T) {
	records := make([][]byte, 8)
	for i := range records {
		records[i] = bytes.Repeat([]byte{byte('A' + i)}, 128)
	}

	p := NewPacker(512)
	articles, err := p.Pack(records)
	require.NoError(t, err)

	// 2+128 = 130 bytes/record; floor(512/130) = 3 per entity -> groups
	// of 3, 3, 2 -> 3 entities total.
	require.Len(t, articles, 3)
	assert.Equal(t, wire.DTFDA, articles[0].Type)
	assert.Equal(t, byte(3), articles[0].IDSrc)
	assert.Equal(t, wire.DTFMA, articles[1].Type)
	assert.Equal(t, byte(3), articles[1].IDSrc)
	assert.Equal(t, wire.DTFFA, articles[2].Type)
	assert.Equal(t, byte(2), articles[2].IDSrc)

	for _, a := range articles {
		recs, ok, err := parseArticles(a.Body)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, recs, int(a.IDSrc))
	}
}

func TestPacker_OversizedRecordSplitsWithoutPrefixes(t *testing.T) {
	record := bytes.Repeat([]byte{'x'}, 1000)
	p := NewPacker(512)
	articles, err := p.Pack([][]byte{record})
	require.NoError(t, err)

	require.Len(t, articles, 2)
	assert.Equal(t, wire.DTFDA, articles[0].Type)
	assert.Equal(t, wire.DTFFA, articles[1].Type)
	assert.Equal(t, byte(0), articles[0].IDSrc)
	assert.Equal(t, byte(0), articles[1].IDSrc)

	reassembled := append(append([]byte{}, articles[0].Body...), articles[1].Body...)
	assert.Equal(t, record, reassembled)

	_, ok, err := parseArticles(articles[0].Body)
	require.Error(t, err)
	assert.False(t, ok, "a raw split segment must not parse as packed multi-article")
}

func TestPacker_EmptyInput(t *testing.T) {
	p := NewPacker(512)
	articles, err := p.Pack(nil)
	require.NoError(t, err)
	assert.Nil(t, articles)
}

func TestParseArticles_ZeroLengthTerminates(t *testing.T) {
	var body []byte
	body = append(body, 0x00, 0x03, 'a', 'b', 'c')
	body = append(body, 0x00, 0x00)
	body = append(body, 'j', 'u', 'n', 'k')

	records, ok, err := parseArticles(body)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("abc"), records[0])
}

func TestParseArticles_LengthExceedsBody(t *testing.T) {
	body := []byte{0x00, 0x10, 'a', 'b'}
	_, ok, err := parseArticles(body)
	require.Error(t, err)
	assert.False(t, ok)
}
