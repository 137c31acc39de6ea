// Package paymentrpc is the wire contract of the payment gateway: request and response
// messages, the gRPC service description and a JSON codec to carry them.
package paymentrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is sent as the gRPC content-subtype ("application/grpc+json").
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
