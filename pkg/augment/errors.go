package augment

import "github.com/pkg/errors"

var (
	// ErrShapeChanged is returned when an orientation transform would change
	// the shape of a patch. It aborts the whole batch.
	ErrShapeChanged = errors.New("augment: orientation changed patch shape")

	// ErrBatchOutOfRange is returned by SelectBatch when the batch index does
	// not resolve to a non-empty sub-range of the dataset.
	ErrBatchOutOfRange = errors.New("augment: batch index out of range")

	// ErrBatchMismatch is returned when parallel batches differ in length or shape.
	ErrBatchMismatch = errors.New("augment: parallel batches do not match")

	// ErrInvalidParams is returned for malformed augmentation parameters.
	ErrInvalidParams = errors.New("augment: invalid parameters")

	// ErrEmptyBatch is returned when an operation needs at least one patch.
	ErrEmptyBatch = errors.New("augment: empty batch")
)
