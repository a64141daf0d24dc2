/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package polyipc

// Version is the semantic version of the module.
// Release builds bump it from the latest git tag.
const Version = "0.1.0"

// ProtocolVersion is the IPC wire format version spoken by this build.
// It mirrors ipcproto.Version and is exported here for tooling that only
// needs to print it.
const ProtocolVersion = 0
