package savings

import (
	"bytes"
	"fmt"

	"github.com/andybalholm/brotli"

	"github.com/vk/pagecost/internal/recording"
)

// DefaultCompressionQuality is the brotli level used for ratio estimates.
const DefaultCompressionQuality = brotli.DefaultCompression

// EstimateTransferSize estimates how many bytes a resource of resourceSize
// would cost on the wire. The result is never negative.
//
//   - With a record of the same resource type, the record's transfer size is
//     the answer.
//   - With a record of another type that knows its resource size, the
//     record's own compression ratio is applied.
//   - With a record that lacks a resource size, resourceSize is used as is.
//   - Without a record, compressionRatio is applied; a non-positive ratio
//     means no compression.
func EstimateTransferSize(record *recording.NetworkRecord, resourceSize int64, resourceType string, compressionRatio float64) float64 {
	return max(0, transferSize(record, resourceSize, resourceType, compressionRatio))
}

func transferSize(record *recording.NetworkRecord, resourceSize int64, resourceType string, compressionRatio float64) float64 {
	switch {
	case record == nil:
		if compressionRatio <= 0 {
			compressionRatio = 1
		}
		return float64(resourceSize) * compressionRatio
	case record.ResourceType == resourceType:
		return float64(record.TransferSize)
	case record.ResourceSize > 0:
		ratio := float64(record.TransferSize) / float64(record.ResourceSize)
		return float64(resourceSize) * ratio
	default:
		return float64(resourceSize)
	}
}

// EstimateCompressionRatio brotli-compresses body at the given quality and
// returns compressed size over original size. An empty body returns 1.
func EstimateCompressionRatio(body []byte, quality int) (float64, error) {
	if len(body) == 0 {
		return 1, nil
	}
	if quality < brotli.BestSpeed || quality > brotli.BestCompression {
		quality = DefaultCompressionQuality
	}

	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, quality)
	if _, err := w.Write(body); err != nil {
		return 0, fmt.Errorf("failed to compress body: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to compress body: %w", err)
	}
	return float64(buf.Len()) / float64(len(body)), nil
}
