// Package tcpfs implements the tcpfs binary wire protocol.
//
// # Framing
//
// A connection carries exactly one command. The client sends a one-byte
// opcode followed by a fixed header and variable-length fields; all integers
// are big-endian and namespace ids are 16 raw UUID bytes.
//
//	0x01 UPLOAD            path_len u32 | file_len u32 | ns | path | bytes
//	0x02 DOWNLOAD          path_len u32 | ns | path
//	0x03 DELETE            ns | path_len u32 | path
//	0x04 LIST              path_len u32 | ns | prefix
//	0x05 CREATE_NAMESPACE  (none)
//	0x06 DELETE_NAMESPACE  ns
//
// Responses:
//
//	UPLOAD            none; clean close on success
//	DOWNLOAD          raw object bytes
//	DELETE            bytes_freed u64
//	LIST              records: is_dir u8 | path_len u32 | ns | size u32 | path | "\r\n"
//	CREATE_NAMESPACE  ns
//	DELETE_NAMESPACE  bytes_freed u64
//
// There is no status byte. A missing object or namespace closes the
// connection cleanly with no payload; every other failure resets it.
//
// # Layers
//
//   - Codec (decode.go, encode.go): bounded header decoding for the server,
//     request encoding and response decoding for clients
//   - Dispatch (dispatch.go): opcode to {Name, Decode, Execute} table
//   - Handlers (handlers.go): run a decoded request against the Service
//
// Connection management (deadlines, close semantics, shutdown) lives in
// pkg/adapter/tcpfs.
package tcpfs
