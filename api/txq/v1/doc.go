// Package txqv1 is the gRPC surface of txq: the txq.v1.PipelineService
// descriptor, its client and server bindings, and the request shapes.
//
// Every RPC carries a google.protobuf.Struct in both directions. Requests
// and responses are plain Go structs converted with ToStruct and FromStruct,
// so the JSON field names match the HTTP gateway.
package txqv1
