// Package chunking provides chunking policies that cut a payload stream into
// pieces for storm.SplitStream. Fixed cuts at a constant size; buzhash and
// rabin are content-defined, so an edit in the middle of a file only changes
// the chunks around it.
package chunking

import (
	"fmt"
	"io"
	"strings"

	boxochunker "github.com/ipfs/boxo/chunker"

	"github.com/stormnet/storm-go/storm"
)

// Policy selects a chunking algorithm.
type Policy string

const (
	Fixed   Policy = "fixed"
	Buzhash Policy = "buzhash"
	Rabin   Policy = "rabin"
)

// DefaultSize is the default target chunk size.
const DefaultSize = 256 * 1024

// ParsePolicy converts a config or flag value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case Fixed, Buzhash, Rabin:
		return p, nil
	case "":
		return Fixed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// NewSplitter returns a splitter reading r under policy p. size is the
// fixed chunk size or, for rabin, the average one. Buzhash uses its own
// 128KiB to 512KiB window and ignores size.
func NewSplitter(r io.Reader, p Policy, size int) (storm.Splitter, error) {
	switch p {
	case Fixed:
		if size < 1 || size > storm.MaxChunkLen {
			return nil, fmt.Errorf("%w: fixed size %d", ErrInvalidSize, size)
		}
		return boxochunker.NewSizeSplitter(r, int64(size)), nil
	case Buzhash:
		return boxochunker.NewBuzhash(r), nil
	case Rabin:
		// Rabin chunks can grow to 1.5x the average.
		if size < 16 || size+size/2 > storm.MaxChunkLen {
			return nil, fmt.Errorf("%w: rabin average %d", ErrInvalidSize, size)
		}
		return boxochunker.NewRabin(r, uint64(size)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, p)
	}
}

// Split reads r to the end under policy p and builds the container.
func Split(r io.Reader, p Policy, size int, opts ...storm.ContainerOption) (*storm.Container, []storm.Chunk, error) {
	s, err := NewSplitter(r, p, size)
	if err != nil {
		return nil, nil, err
	}
	return storm.SplitStream(s, opts...)
}
