package ostree

import (
	"encoding/hex"
	"fmt"

	"github.com/sdko-org/flathub-stats/internal/gvariant"
)

const (
	SummarySignature = "(a(s(taya{sv}))a{sv})"
	CommitSignature  = "(a{sv}aya(say)sstayay)"
)

// CommitObject holds the parts of a commit object the resolver uses.
// Metadata values are unwrapped from their variants.
type CommitObject struct {
	Metadata    map[string]any
	RootDirtree string
}

// Decoder turns raw repository objects into typed fields.
type Decoder interface {
	DecodeSummary(data []byte) (map[string]string, error)
	DecodeCommit(data []byte) (CommitObject, error)
}

// GVariantDecoder decodes the GVariant serialized objects OSTree publishes.
type GVariantDecoder struct{}

func (GVariantDecoder) DecodeSummary(data []byte) (map[string]string, error) {
	v, err := gvariant.Decode(SummarySignature, data)
	if err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	refs, ok := v.([]any)[0].([]any)
	if !ok {
		return nil, fmt.Errorf("decode summary: unexpected ref list")
	}
	out := make(map[string]string, len(refs))
	for _, entry := range refs {
		pair := entry.([]any)
		name := pair[0].(string)
		info := pair[1].([]any)
		checksum := info[1].([]byte)
		if len(checksum) == 0 {
			continue
		}
		out[name] = hex.EncodeToString(checksum)
	}
	return out, nil
}

func (GVariantDecoder) DecodeCommit(data []byte) (CommitObject, error) {
	v, err := gvariant.Decode(CommitSignature, data)
	if err != nil {
		return CommitObject{}, fmt.Errorf("decode commit: %w", err)
	}
	fields := v.([]any)
	meta := make(map[string]any)
	for k, val := range fields[0].(map[string]any) {
		meta[k] = val.(gvariant.Variant).Value
	}
	return CommitObject{
		Metadata:    meta,
		RootDirtree: hex.EncodeToString(fields[6].([]byte)),
	}, nil
}
