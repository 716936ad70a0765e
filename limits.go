package streampager

import "fmt"

const (
	MaxBatchSize     = 10_000
	DefaultBatchSize = 100
)

// IsNormalizedSizeMax reports the batch size to use for a configured value.
// Zero means "not set" and is replaced by DefaultBatchSize, values above
// maxSize are clamped. The second return value is true when size was used as is.
func IsNormalizedSizeMax(size int, maxSize int) (int, bool) {
	if size == 0 {
		return DefaultBatchSize, false
	} else if size > maxSize {
		return maxSize, false
	}

	return size, true
}

// NormalizeSize applies IsNormalizedSizeMax with MaxBatchSize. Negative sizes
// are rejected.
func NormalizeSize(size int) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: negative batch size %d", ErrInvalidArgument, size)
	}

	ret, _ := IsNormalizedSizeMax(size, MaxBatchSize)
	return ret, nil
}

// validateSize is the precondition shared by every batched operation.
func validateSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, size)
	}
	if size > MaxBatchSize {
		return fmt.Errorf("%w: batch size %d exceeds maximum %d", ErrInvalidArgument, size, MaxBatchSize)
	}

	return nil
}
