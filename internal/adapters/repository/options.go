package repository

// Option applies a configuration option to the JSONLStore.
type Option func(*JSONLStore)

// WithFullDialogueDir writes each complete dialogue to <dir>/<id>.json.
func WithFullDialogueDir(dir string) Option {
	return func(s *JSONLStore) {
		s.fullDir = dir
	}
}

// WithFailuresPath appends failed tasks as JSON lines to path.
func WithFailuresPath(path string) Option {
	return func(s *JSONLStore) {
		s.failuresPath = path
	}
}

// WithAppend keeps existing output instead of truncating it. Resumed runs use this.
func WithAppend(enabled bool) Option {
	return func(s *JSONLStore) {
		s.appendMode = enabled
	}
}
