package pipeline

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// OSTree delta ids are base64 without padding, with '_' in place of '/' so
// they are usable as path components.
var deltaEncoding = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+_").WithPadding(base64.NoPadding)

// DeltaIDToCommit decodes a delta id into a hex commit checksum.
func DeltaIDToCommit(id string) (string, error) {
	raw, err := deltaEncoding.DecodeString(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrBadDeltaID, id, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("%w: %q decodes to %d bytes", ErrBadDeltaID, id, len(raw))
	}
	return hex.EncodeToString(raw), nil
}

// CommitToDeltaID encodes a hex commit checksum as a delta id.
func CommitToDeltaID(commit string) (string, error) {
	raw, err := hex.DecodeString(strings.ToLower(commit))
	if err != nil {
		return "", fmt.Errorf("invalid commit %q: %w", commit, err)
	}
	return deltaEncoding.EncodeToString(raw), nil
}
