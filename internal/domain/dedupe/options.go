package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithSeen preloads IDs, typically read back from an existing output file.
// Empty IDs are ignored.
func WithSeen(ids ...string) Option {
	return func(d *inMemoryDeduper) {
		for _, id := range ids {
			if id != "" {
				d.add(id)
			}
		}
	}
}
