// Package pkg contains the transport layer and its supporting packages.
//
// The transport layer lets one protocol engine speak a JSON-RPC-style
// tool-invocation protocol over multiple wire substrates through a
// single message abstraction:
//
//   - transport: the Transport contract and its stdio, HTTP, and
//     WebSocket implementations, plus framing, correlation, and
//     middleware
//   - protocol: JSON-RPC message types and error payload helpers
//   - auth: pluggable per-request authentication (none, API key,
//     basic, JWT HS256)
//   - certs: TLS certificate provisioning for HTTPS listeners
//   - errors: the structured error types used across the layer
//   - logging: the structured logger the layer reports through
//   - observability: Prometheus metrics and OpenTelemetry tracing
//
// A typical server reads messages from a transport, dispatches them to
// protocol handlers elsewhere, and writes replies back:
//
//	config := transport.DefaultConfig()
//	config.Type = transport.TypeHTTP
//	config.HTTP.Port = 8080
//
//	tr, err := transport.New(config, transport.Options{})
//	if err != nil {
//	    // handle error
//	}
//	if err := tr.Start(ctx); err != nil {
//	    // handle error
//	}
//	defer tr.Stop(ctx)
//
//	for {
//	    msg, err := tr.ReadMessage(ctx)
//	    if err != nil {
//	        break // io.EOF after disconnect
//	    }
//	    reply := handle(msg)
//	    tr.WriteMessage(ctx, reply)
//	}
package pkg
