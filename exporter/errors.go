package exporter

import (
	"github.com/pkg/errors"
)

var (
	// index buffer can't be split into triangles
	ErrMalformedTopology = errors.New("malformed topology")
	// texture file absent while converting materials, never fatal
	ErrMissingTexture = errors.New("missing texture")
	// scene encoder failed, nothing is patched after it
	ErrEncodeFailure = errors.New("encode failure")

	ErrInvalidSkeleton = errors.New("invalid skeleton")
	ErrSkeletonCycle   = errors.New("skeleton has parent cycle")
	ErrSkeletonTooDeep = errors.New("skeleton too deep")
)
