package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRegUidsKeepsDocumentOrder(t *testing.T) {
	got, err := DecodeRegUids(`{"300":{"uid":"300","type":"reg"},"100":{"uid":"100","type":"verified"},"200":{"uid":"200","type":"verify"}}`)
	require.NoError(t, err)
	assert.Equal(t, []UidBinding{
		{Uid: "300", Origin: OriginManual},
		{Uid: "100", Origin: OriginVerified},
		{Uid: "200", Origin: OriginVerified},
	}, got)
}

func TestDecodeRegUidsSkipsForeignEntries(t *testing.T) {
	got, err := DecodeRegUids(`{"100":{"uid":"100","type":"ck","ltuid":"9"},"200":{"type":"reg"},"":{"type":"reg"},"300":"junk"}`)
	require.NoError(t, err)
	assert.Equal(t, []UidBinding{{Uid: "200", Origin: OriginManual}}, got)
}

func TestDecodeRegUidsMalformed(t *testing.T) {
	for _, raw := range []string{"{oops", "[1,2]", `"str"`} {
		_, err := DecodeRegUids(raw)
		assert.ErrorIs(t, err, ErrMalformedRegUids, raw)
	}

	got, err := DecodeRegUids("  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEncodeRegUidsRoundTrip(t *testing.T) {
	in := []UidBinding{
		{Uid: "300", Origin: OriginManual},
		{Uid: "100", Origin: OriginCredential, OwnerID: "9"},
		{Uid: "1.5", Origin: OriginVerified},
		{Uid: "2", Origin: OriginManual},
	}

	raw, err := EncodeRegUids(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"300":{"uid":"300","type":"reg"},"1.5":{"uid":"1.5","type":"verified"},"2":{"uid":"2","type":"reg"}}`, raw)

	out, err := DecodeRegUids(raw)
	require.NoError(t, err)
	assert.Equal(t, []UidBinding{in[0], in[2], in[3]}, out)
}

func TestEncodeRegUidsEmpty(t *testing.T) {
	raw, err := EncodeRegUids(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)
}
