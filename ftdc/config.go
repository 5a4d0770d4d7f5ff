package ftdc

import (
	"fmt"

	"github.com/ftdc-go/ftdc/internal/options"
)

// defaultSanityCap bounds a single framed record's declared size (§4.G): a
// corrupt length prefix must not be allowed to drive an allocation or read
// of unbounded size.
const defaultSanityCap = 100 * 1024 * 1024 // 100MiB

type readerConfig struct {
	strict        bool
	sanityCap     int
	metadataCache bool
}

func newReaderConfig() *readerConfig {
	return &readerConfig{
		sanityCap:     defaultSanityCap,
		metadataCache: true,
	}
}

// OpenOption configures a Reader at construction time.
type OpenOption = options.Option[*readerConfig]

// WithStrictMode makes chunk decoding treat any metrics_count/deltas_count
// disagreement (§4.D.6) as errs.ErrSchema, instead of the default behavior
// of tolerating a disagreement within a small margin (recording a
// chunk.Warning) and only failing once it exceeds that margin.
func WithStrictMode() OpenOption {
	return options.NoError(func(c *readerConfig) { c.strict = true })
}

// WithSanityCap overrides the maximum accepted framed-record size, in
// bytes. The default is 100MiB.
func WithSanityCap(n int) OpenOption {
	return options.New(func(c *readerConfig) error {
		if n <= 0 {
			return fmt.Errorf("ftdc: sanity cap must be positive, got %d", n)
		}

		c.sanityCap = n

		return nil
	})
}

// WithMetadataCache controls whether the reader tracks the most recently
// seen metadata document for attachment to subsequent chunks. Disabling it
// saves the per-document content hash but means Chunk.Metadata is always
// nil from IterChunks.
func WithMetadataCache(enabled bool) OpenOption {
	return options.NoError(func(c *readerConfig) { c.metadataCache = enabled })
}
