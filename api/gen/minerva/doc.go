// Package minervapb holds the wire types and the gRPC service binding for
// api/proto/minerva.proto.
//
// The messages encode themselves with protowire and are picked up by the
// codec registered in pkg/core/grpc; the byte layout is the one protoc would
// produce for the schema, so clients generated from the .proto file interoperate.
package minervapb
