/*
 * dedupblob: content-addressed deduplicating blob store
 * Copyright (C) 2026 Aleksa Sarai <cyphar@cyphar.com>
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dedup implements the streaming deduplicator: a single-pass
// scanner over an input byte stream that splits it into content-addressed
// blocks, reusing any block (at any byte offset, not just block-aligned
// ones) that the repository has already seen.
//
// The scanner keeps a working buffer of at most twice the repository's
// block size. It only ever computes a cryptographic digest (the
// expensive operation) when a cheap rolling checksum says a candidate
// alignment is worth checking; everywhere else it relies on that rolling
// checksum alone to decide whether to keep sliding.
package dedup

import (
	"bufio"
	"io"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/cyphar/dedupblob/block"
	"github.com/cyphar/dedupblob/repo"
	"github.com/cyphar/dedupblob/rolling"
)

// Stats accumulates counters over the course of a single Scan.
type Stats struct {
	// NewBlocks is the number of blocks newly written to the repository.
	NewBlocks uint64
	// NewBytes is the total length, in bytes, of NewBlocks.
	NewBytes uint64
	// DupBlocks is the number of blocks that were already present in the
	// repository (content-addressed matches, whether found by alignment
	// or by the rolling-checksum filter).
	DupBlocks uint64
	// DupBytes is the total length, in bytes, of DupBlocks.
	DupBytes uint64
	// RollFalse counts rolling-checksum filter hits that did not survive
	// digest confirmation: the cheap filter's false-positive rate.
	RollFalse uint64
}

// Scan reads r to completion, splitting it into blocks against rep and
// returning, in input order, the key of every committed block. rep's
// BlockSize determines both the maximum block length and the size of the
// working buffer (which never exceeds twice that).
//
// Scan issues at most one digest computation (block.Sum) per candidate
// alignment the rolling checksum flags, plus one per committed block
// (including a matched block, which is hashed again when it is committed);
// everywhere else the rolling checksum alone decides whether to keep
// sliding.
//
// A read error from r is wrapped and returned; no keys are returned in
// that case, and the caller should assume rep may have gained orphan
// blocks (blocks written before the failing read, referenced by no file
// yet — see the documentation on Store.Save).
func Scan(r io.Reader, rep repo.Engine) ([]block.Key, Stats, error) {
	blockSize := rep.BlockSize()
	br := bufio.NewReaderSize(r, 4096)

	var (
		keys []block.Key
		buf  []byte
		st   Stats
	)

	next := func() (b byte, ok bool, err error) {
		b, err = br.ReadByte()
		if err == io.EOF {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, errors.Wrap(err, "read input")
		}
		return b, true, nil
	}

	// commit turns a byte range into a stored (or deduplicated) block,
	// appends its key to the key list, and updates stats. A no-op on an
	// empty range, so end-of-input corner cases never add a zero-length
	// entry to the key list (spec.md §4.4, §9 "Empty-block suppression").
	commit := func(data []byte) {
		if len(data) == 0 {
			return
		}
		key := block.Sum(data)
		if rep.HasBlock(key) {
			st.DupBlocks++
			st.DupBytes += uint64(len(data))
		} else {
			if len(data) == blockSize {
				rep.PutFingerprint(rolling.New(data).Value())
			}
			rep.PutBlock(key, data)
			st.NewBlocks++
			st.NewBytes += uint64(len(data))
			log.WithFields(log.Fields{
				"key":  key,
				"size": len(data),
			}).Debugf("dedup: new block")
		}
		keys = append(keys, key)
	}

	// flushPrefix commits the first n bytes of buf and keeps the rest, or
	// (if buf is no longer than n) commits the whole of buf and empties
	// it. This single operation implements every buffer-shrinking step in
	// the scan: the prefix commit ahead of a confirmed match, the forced
	// flush when no match is found within a 2*blockSize window, and both
	// of the flushes on end-of-input mid-slide.
	flushPrefix := func(n int) {
		if len(buf) > n {
			commit(buf[:n])
			buf = buf[n:]
		} else {
			commit(buf)
			buf = buf[:0]
		}
	}

	for {
		// Fill phase: read until the buffer holds a full block, or input
		// ends (in which case whatever was read, possibly a short tail or
		// nothing at all, is committed as the final block).
		for len(buf) < blockSize {
			b, ok, err := next()
			if err != nil {
				return nil, Stats{}, err
			}
			if !ok {
				commit(buf)
				return keys, st, nil
			}
			buf = append(buf, b)
		}

		// Slide phase: look for a block-sized run, starting at any byte
		// offset in the buffer, that the repository has already seen.
		roll := rolling.New(buf)
		for len(buf) < 2*blockSize {
			offset := len(buf) - blockSize
			if rep.HasFingerprint(roll.Value()) {
				candidate := block.Sum(buf[offset:])
				if rep.HasBlock(candidate) {
					// Confirmed match: flush the unmatched prefix (a
					// no-op if offset is 0) and stop sliding. The
					// matched block itself is committed by the
					// unconditional flushPrefix below, along with the
					// forced-flush case.
					flushPrefix(offset)
					break
				}
				st.RollFalse++
			}

			b, ok, err := next()
			if err != nil {
				return nil, Stats{}, err
			}
			if !ok {
				// End of input mid-slide: the first blockSize bytes are
				// always a complete block; anything past that is a
				// short tail. flushPrefix handles both, including the
				// case where no tail remains.
				flushPrefix(blockSize)
				flushPrefix(blockSize)
				return keys, st, nil
			}

			out := buf[len(buf)-blockSize]
			roll.Roll(out, b)
			buf = append(buf, b)
		}

		// Either the slide above broke on a confirmed match (buf is now
		// exactly blockSize long: the matched block, not yet committed)
		// or it ran out the full 2*blockSize window with no match (a
		// forced flush). Both are the same operation.
		flushPrefix(blockSize)
	}
}
