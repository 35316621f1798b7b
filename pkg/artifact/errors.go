package artifact

import "errors"

var (
	// ErrPathEscape is returned when a path resolves outside the store root.
	ErrPathEscape = errors.New("artifact: path escapes output root")

	// ErrArtifactIO wraps filesystem failures while creating, reading,
	// writing or deleting an artifact.
	ErrArtifactIO = errors.New("artifact: filesystem error")

	// ErrUnknownKind is returned when a path inside the root does not name
	// an artifact this store manages.
	ErrUnknownKind = errors.New("artifact: unknown artifact kind")

	// ErrInvalidRunID is returned for run ids that cannot be embedded in a
	// file name.
	ErrInvalidRunID = errors.New("artifact: invalid run id")
)
