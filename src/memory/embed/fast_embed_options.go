package embed

// Options tunes the local fastembed model.
type Options struct {
	Model     string // empty picks bge-small-en-v1.5
	CacheDir  string
	MaxLength int // token limit, 0 = library default
	BatchSize int
}
