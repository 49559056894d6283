package store

import (
	"context"
	"fmt"
)

// Tier is one backing store of the persistence layer. The local tier
// is always available; remote tiers are best-effort and may refuse or
// lose availability at any time.
type Tier interface {
	// Read returns the stored value for key, or ok=false if absent
	Read(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Write stores value under key, replacing any previous value
	Write(ctx context.Context, key string, value []byte) error

	// Remove deletes key; removing an absent key is not an error
	Remove(ctx context.Context, key string) error

	// Name identifies the tier in logs and notices
	Name() string

	// Close releases the tier's resources
	Close() error
}

// FailureKind classifies why a remote tier refused an operation
type FailureKind string

const (
	KindWriteQuota   FailureKind = "write-quota"
	KindStorageQuota FailureKind = "storage-quota"
	KindPermission   FailureKind = "permission"
	KindUnavailable  FailureKind = "unavailable"
	KindOther        FailureKind = "other"
)

// RemoteError wraps a remote tier failure with its classification.
// Remote errors never escape the store layer; they degrade operations
// to local-only and become advisory notices at most.
type RemoteError struct {
	Kind FailureKind
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote tier %s: %v", e.Kind, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func remoteErr(kind FailureKind, err error) *RemoteError {
	return &RemoteError{Kind: kind, Err: err}
}
