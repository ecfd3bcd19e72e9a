// Package storage provides the block-aligned append-only file writer used
// underneath a table writer's commit log.
package storage

import (
	"io"
	"os"
	"sync"

	"github.com/ncw/directio"
)

var (
	blockSizeOnce sync.Once
	blockSize     = directio.BlockSize
)

// Writer is a wrapper around a directio file. It writes data to the file in
// multiples of the block size. Any data that is not a multiple of the block
// size is written to the file in the next block with zero padding.
type Writer struct {
	file  *os.File
	block int
}

// NewWriter opens name with flag and wraps it in a block-aligned Writer.
func NewWriter(name string, flag int) (*Writer, error) {
	file, err := directio.OpenFile(name, flag, 0755)
	if err != nil {
		return nil, err
	}

	blockSizeOnce.Do(func() {
		blockSize = len(directio.AlignedBlock(directio.BlockSize))
	})

	return &Writer{
		file:  file,
		block: blockSize,
	}, nil
}

var _ io.WriteCloser = (*Writer)(nil)

// Write writes buf to the file in multiples of the block size, padding the
// final partial block with zeroes, and returns the number of blocks
// written.
func (f *Writer) Write(buf []byte) (n int, err error) {
	if len(buf) == 0 {
		return 0, nil
	}

	blocks := len(buf) / f.block
	rem := len(buf) % f.block

	if rem == 0 {
		if _, err = f.file.Write(buf); err != nil {
			return 0, err
		}
		return blocks, nil
	}

	// Write the entire slice except the last partial block.
	if _, err = f.file.Write(buf[:len(buf)-rem]); err != nil {
		return 0, err
	}

	// Write the last block, padded with zeroes to the block boundary.
	padded := make([]byte, f.block)
	copy(padded, buf[len(buf)-rem:])
	if _, err = f.file.Write(padded); err != nil {
		return blocks, err
	}

	return blocks + 1, nil
}

// Sync flushes the file's in-kernel buffers to stable storage.
func (f *Writer) Sync() error {
	return f.file.Sync()
}

func (f *Writer) Close() error {
	return f.file.Close()
}
