package capture

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/intmatrix/internal/protocol"
)

func rec(session string, seq uint64, dir Direction, payload string) Record {
	return Record{
		Session:   session,
		Seq:       seq,
		Direction: dir,
		Length:    len(payload),
		Hex:       hex.EncodeToString([]byte(payload)),
	}
}

func TestAnalyze(t *testing.T) {
	records := []Record{
		rec("a", 1, DirectionSend, "/*Type;\r\n"),
		rec("a", 2, DirectionReceive, "INT-44HDX\r\nV1.05\r\n"),
		rec("a", 3, DirectionSend, "2B1.\r\n"),
		rec("a", 4, DirectionReceive, "AV:02->"),
		rec("a", 5, DirectionReceive, "01\r\n"),
		rec("a", 6, DirectionReceive, "Command Error!\r\n"),
	}

	decoded, err := Analyze(records)
	require.NoError(t, err)
	require.Len(t, decoded, 6)

	assert.Equal(t, "/*Type;", decoded[0].Line)
	assert.Nil(t, decoded[0].Update)

	assert.Equal(t, protocol.KindModel, decoded[1].Update.Kind())
	assert.Equal(t, protocol.KindVersion, decoded[2].Update.Kind())
	assert.Equal(t, "2B1.", decoded[3].Line)

	assert.Equal(t, "AV:02->01", decoded[4].Line)
	assert.Equal(t, uint64(5), decoded[4].Record.Seq, "line is attributed to the completing delivery")
	assert.Equal(t, protocol.KindRoute, decoded[4].Update.Kind())

	assert.Equal(t, protocol.KindUnknown, decoded[5].Update.Kind())

	s := Summarize(records, decoded)
	assert.Equal(t, 6, s.Records)
	assert.Equal(t, 2, s.Sent)
	assert.Equal(t, 4, s.Received)
	assert.Equal(t, 1, s.ByKind[protocol.KindRoute])
}

func TestAnalyze_ResetsOnNewSession(t *testing.T) {
	records := []Record{
		rec("a", 1, DirectionReceive, "AV:02->"),
		rec("b", 1, DirectionReceive, "System"),
		rec("b", 2, DirectionReceive, " Locked!"),
	}

	decoded, err := Analyze(records)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, "System Locked!", decoded[0].Line)
	assert.Equal(t, protocol.KindLock, decoded[0].Update.Kind())
}

func TestAnalyze_BadHex(t *testing.T) {
	_, err := Analyze([]Record{{Session: "a", Seq: 9, Hex: "zz"}})
	assert.Error(t, err)
}

func TestAnalyze_FromRecorder(t *testing.T) {
	r, err := Open(t.TempDir(), FormatCBOR)
	require.NoError(t, err)
	require.NoError(t, r.Record(DirectionReceive, []byte("02 To All\r\n")))
	require.NoError(t, r.Close())

	records, err := ReadFile(r.Path())
	require.NoError(t, err)
	decoded, err := Analyze(records)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, protocol.KindRouteAll, decoded[0].Update.Kind())
	assert.Equal(t, ".cbor", filepath.Ext(r.Path()))
}
