package model

import "strings"

// ZeroAddress is the EVM mint/burn sentinel. Transfers from it are mints,
// transfers to it are burns; neither side gets a holding row.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lowercases and trims an address. All addresses entering
// the system pass through this exactly once, at the transport boundary, so
// that every registry and store lookup operates on one canonical casing.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func IsZeroAddress(addr string) bool {
	return NormalizeAddress(addr) == ZeroAddress
}
