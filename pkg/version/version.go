package version

// Version is the release version of the mcprepl binaries.
const Version = "0.3.1"

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"
