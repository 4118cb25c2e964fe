package proto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ttt "github.com/TyuiX/TicTacToeServer"
)

func TestSendRecvRoundTrip(t *testing.T) {
	for _, test := range []struct {
		name    string
		h       Header
		payload []byte
	}{
		{
			name: "no payload",
			h:    Header{Type: ACK, Id: 3, Role: ttt.NONE},
		},
		{
			name:    "with payload",
			h:       Header{Type: INVITED, Id: 1, Role: ttt.SECOND},
			payload: []byte("alice"),
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Send(&buf, test.h, test.payload, 0))

			pkt, err := Recv(&buf)
			require.NoError(t, err)
			assert.Equal(t, test.h.Type, pkt.Type)
			assert.Equal(t, test.h.Id, pkt.Id)
			assert.Equal(t, test.h.Role, pkt.Role)
			assert.Equal(t, test.payload, pkt.Payload)
		})
	}
}

func TestRecvEOF(t *testing.T) {
	_, err := Recv(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEOF)
}

func TestRecvShortHeader(t *testing.T) {
	_, err := Recv(bytes.NewReader(make([]byte, 4)))
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestRecvShortPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Send(&buf, Header{Type: MOVED}, []byte("0123456789"), 0))
	truncated := buf.Bytes()[:HeaderSize+3]
	_, err := Recv(bytes.NewReader(truncated))
	assert.ErrorIs(t, err, ErrShortRead)
}
