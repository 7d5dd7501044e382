package kangaroo

import "errors"

var (
	// ErrInvalidParams indicates table parameters that cannot describe a table.
	ErrInvalidParams = errors.New("kangaroo: invalid parameters")

	// ErrInvalidTable indicates a table encoding that does not parse or whose
	// shape disagrees with its parameters.
	ErrInvalidTable = errors.New("kangaroo: invalid table")

	// ErrCorruptTable indicates a table that parses but whose jump points do not
	// match their logarithms.
	ErrCorruptTable = errors.New("kangaroo: corrupt table")

	// ErrInvalidPoint indicates a target that is not a canonical Ristretto255 encoding.
	ErrInvalidPoint = errors.New("kangaroo: invalid point encoding")
)
