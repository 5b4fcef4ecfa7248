package service

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// buildParityShards computes Reed-Solomon parity over the data blocks of one
// encode run. Blocks are zero-padded to the largest block length so uneven
// slicing works too; the manifest's per-block lengths make the padding
// reversible. Returns the parity shards and the uniform shard size.
func buildParityShards(blocks [][]byte, parityShards int) ([][]byte, int64, error) {
	if len(blocks) == 0 || parityShards <= 0 {
		return nil, 0, nil
	}

	enc, err := reedsolomon.New(len(blocks), parityShards)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to initialize parity encoder for %d+%d shards: %w",
			len(blocks), parityShards, err)
	}

	shardSize := 0
	for _, b := range blocks {
		if len(b) > shardSize {
			shardSize = len(b)
		}
	}

	shards := make([][]byte, len(blocks)+parityShards)
	for i, b := range blocks {
		padded := make([]byte, shardSize)
		copy(padded, b)
		shards[i] = padded
	}
	for i := len(blocks); i < len(shards); i++ {
		shards[i] = make([]byte, shardSize)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, 0, fmt.Errorf("failed to compute parity shards: %w", err)
	}
	return shards[len(blocks):], int64(shardSize), nil
}

// recoverBlocks fills the nil entries of blocks in place from the available
// parity shards. lengths holds the true unpadded length of every data
// block; parity entries may be nil when a parity fragment was itself
// unreadable. shardSize is the uniform padded length recorded in the parity
// manifest.
func recoverBlocks(blocks [][]byte, lengths []int64, parity [][]byte, shardSize int64) error {
	enc, err := reedsolomon.New(len(blocks), len(parity))
	if err != nil {
		return fmt.Errorf("failed to initialize parity decoder for %d+%d shards: %w",
			len(blocks), len(parity), err)
	}

	shards := make([][]byte, len(blocks)+len(parity))
	for i, b := range blocks {
		if b == nil {
			continue
		}
		padded := make([]byte, shardSize)
		copy(padded, b)
		shards[i] = padded
	}
	copy(shards[len(blocks):], parity)

	if err := enc.Reconstruct(shards); err != nil {
		return fmt.Errorf("failed to reconstruct missing fragments: %w", err)
	}

	for i := range blocks {
		if blocks[i] == nil {
			blocks[i] = shards[i][:lengths[i]]
		}
	}
	return nil
}
