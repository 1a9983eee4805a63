package market

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures in the market data layer.
type ErrorKind int

const (
	// ValidationFailure is a malformed ticker, asset id or batch. Never retried.
	ValidationFailure ErrorKind = iota + 1
	// ProviderFailure means no price could be obtained for an asset.
	ProviderFailure
	// StoreFailure means the persistent quote store is unreachable or failed.
	StoreFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ValidationFailure:
		return "validation"
	case ProviderFailure:
		return "provider"
	case StoreFailure:
		return "store"
	default:
		return "unknown"
	}
}

// Error carries the failure kind and the asset it concerns.
type Error struct {
	Kind    ErrorKind
	AssetID string
	Err     error
}

func (e *Error) Error() string {
	if e.AssetID == "" {
		return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s failure for %s: %v", e.Kind, e.AssetID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(assetID string, err error) error {
	return &Error{Kind: ValidationFailure, AssetID: assetID, Err: err}
}

func Provider(assetID string, err error) error {
	return &Error{Kind: ProviderFailure, AssetID: assetID, Err: err}
}

func Store(assetID string, err error) error {
	return &Error{Kind: StoreFailure, AssetID: assetID, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k ErrorKind) bool {
	return KindOf(err) == k
}
