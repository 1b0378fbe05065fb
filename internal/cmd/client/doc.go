// Package client provides the `txq` command-line client.
//
// The CLI talks to the txq gRPC endpoint to submit transactions, drain
// lanes by hand, and manage the dead-letter lane from a terminal. It is
// primarily intended for operators.
//
// # Address configuration
//
// The gRPC address is read from the TXQ_GRPC environment variable
// (default 127.0.0.1:50051).
//
// Usage
//
//	txq queue enqueue --priority high --sla 2 \
//	    --data '{"transaction_id":"T1","amount":500}'
//
//	txq queue process --lane retry --batch-size 25
//	txq queue status
//
//	txq dlq list --limit 20
//	txq dlq replay --id 6f1c... --id 91ab... --target high
//	txq dlq replay --all
//
// Notes
//
//   - every command prints the server reply as indented JSON.
//   - replay resets attempts, so replayed entries get the full retry budget
//     of their new lane.
package client
