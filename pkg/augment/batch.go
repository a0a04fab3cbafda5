package augment

import (
	"github.com/pkg/errors"

	"ctaugment/internal/models"
)

// NumBatches returns the number of full batches in a dataset of n patches.
// A trailing partial batch is not counted.
func NumBatches(n, batchSize int) (int, error) {
	if batchSize <= 0 {
		return 0, errors.Wrapf(ErrInvalidParams, "batch size must be positive, got %d", batchSize)
	}
	return n / batchSize, nil
}

// SelectBatch copies the patches [batchIndex*batchSize, (batchIndex+1)*batchSize)
// out of data. The end is clamped to the dataset length, so the last batch may
// be short. The returned batch shares no storage with data, so augmenting it in
// place never alters the dataset.
func SelectBatch(data models.Batch, batchIndex, batchSize int) (models.Batch, error) {
	if batchSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "batch size must be positive, got %d", batchSize)
	}
	start := batchIndex * batchSize
	if batchIndex < 0 || start >= len(data) {
		return nil, errors.Wrapf(ErrBatchOutOfRange, "batch %d of size %d in dataset of %d patches",
			batchIndex, batchSize, len(data))
	}
	end := start + batchSize
	if end > len(data) {
		end = len(data)
	}
	return data[start:end].Clone(), nil
}
