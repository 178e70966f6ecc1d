package assets

import (
	"context"
	"fmt"
	"io"
)

// decode opens ref and runs fn over its content.
func decode[T any](ctx context.Context, ref Ref, fn func(io.Reader) (T, error)) (T, error) {
	var zero T
	rc, err := ref.Open(ctx)
	if err != nil {
		return zero, err
	}
	defer rc.Close()
	v, err := fn(rc)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", ref, err)
	}
	return v, nil
}

// LoadAPNVersion reads the version attribute of the APN document at ref.
func LoadAPNVersion(ctx context.Context, ref Ref) (int, error) {
	return decode(ctx, ref, ReadAPNVersion)
}

// LoadAPNs decodes the APN document at ref.
func LoadAPNs(ctx context.Context, ref Ref) (*APNDocument, error) {
	return decode(ctx, ref, DecodeAPNs)
}

// LoadSPNOverrides decodes the SPN table at ref.
func LoadSPNOverrides(ctx context.Context, ref Ref) ([]SPNOverride, error) {
	return decode(ctx, ref, DecodeSPNOverrides)
}

// LoadVirtualSPN decodes an MVNO table at ref with the given decoder.
func LoadVirtualSPN(ctx context.Context, ref Ref, fn func(io.Reader) ([]VirtualSPN, error)) ([]VirtualSPN, error) {
	return decode(ctx, ref, fn)
}

// LoadVirtualNets decodes the GID1 table at ref.
func LoadVirtualNets(ctx context.Context, ref Ref) ([]VirtualNet, error) {
	return decode(ctx, ref, DecodeVirtualNets)
}
