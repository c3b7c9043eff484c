package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes generated protobuf messages.
// newMsg returns an empty message to decode into, e.g. func() *pb.Feed { return &pb.Feed{} }.
type Protobuf[M proto.Message] struct {
	newMsg func() M
}

func NewProtobuf[M proto.Message](newMsg func() M) Protobuf[M] {
	return Protobuf[M]{newMsg: newMsg}
}

func (c Protobuf[M]) Encode(m M) ([]byte, error) { return proto.Marshal(m) }

func (c Protobuf[M]) Decode(b []byte) (M, error) {
	m := c.newMsg()
	err := proto.Unmarshal(b, m)
	return m, err
}
