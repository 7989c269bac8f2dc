package unixport

import (
	"github.com/fxamacker/cbor/v2"
)

// MaxPayload bounds the attachment carried by one datagram.
const MaxPayload = 64 << 10

// maxDatagram leaves room for the envelope header around MaxPayload.
const maxDatagram = MaxPayload + 4<<10

type envelope struct {
	ID      int32  `cbor:"1,keyasint"`
	Reply   string `cbor:"2,keyasint,omitempty"`
	Payload []byte `cbor:"3,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("unixport: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxArrayElements: 16,
		MaxMapPairs:      16,
	}.DecMode()
	if err != nil {
		panic("unixport: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshalEnvelope(env envelope) ([]byte, error) {
	return encMode.Marshal(env)
}

func unmarshalEnvelope(data []byte) (envelope, error) {
	var env envelope
	err := decMode.Unmarshal(data, &env)
	return env, err
}
