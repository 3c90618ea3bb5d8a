// Package wazero registers the host side of the notification bridge with a
// wazero runtime.
//
// The guest imports a single function, env.print(ptr i32, len i32), and
// expects it to take len bytes of UTF-8 at ptr and log them. This package
// builds that host module:
//
//   - Reads the message bytes from the calling module's memory
//   - Caps the length at MaxMessageSize, cutting on a character boundary
//   - Hands a copy of the text to a PrintFunc, synchronously and in call order
//
// Nothing is returned to the guest; a message that cannot be read is logged
// on the host and dropped.
//
// # Basic Usage
//
//	runtime := wazero.NewRuntime(ctx)
//	err := wazeroadapter.RegisterWithRuntime(ctx, runtime,
//	    func(ctx context.Context, mod api.Module, msg string) { fmt.Println(msg) },
//	)
package wazero
