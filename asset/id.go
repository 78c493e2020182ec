package asset

import (
	"fmt"
	"strings"
)

const (
	localPrefix  = "local-"
	remotePrefix = "remote-"
)

// Identity is the decoded form of an asset id.
type Identity struct {
	Source    Source
	NativeKey string
}

// DeriveID maps a source and the key that source assigned to the bytes
// onto a globally unique, source-tagged asset id.
func DeriveID(source Source, nativeKey string) (string, error) {
	if nativeKey == "" {
		return "", fmt.Errorf("%w: native key is empty", ErrInvalidID)
	}

	switch source {
	case SourceLocal:
		return localPrefix + nativeKey, nil
	case SourceRemote:
		return remotePrefix + nativeKey, nil
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidID, source)
	}
}

// ParseID reverses DeriveID. Only ids starting with a known source prefix
// followed by a non-empty key are accepted.
func ParseID(id string) (Identity, error) {
	switch {
	case strings.HasPrefix(id, localPrefix):
		if key := id[len(localPrefix):]; key != "" {
			return Identity{Source: SourceLocal, NativeKey: key}, nil
		}
	case strings.HasPrefix(id, remotePrefix):
		if key := id[len(remotePrefix):]; key != "" {
			return Identity{Source: SourceRemote, NativeKey: key}, nil
		}
	}

	return Identity{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
}
