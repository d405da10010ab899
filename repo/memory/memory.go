/*
 * dedupblob: content-addressed deduplicating blob store
 * Copyright (C) 2016-2026 SUSE LLC
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

// Package memory provides an in-memory repo.Engine: no persistence, no
// concurrency control, backed by plain Go maps for the block and file
// tables and a Bloom filter for the fingerprint set.
package memory

import (
	"encoding/binary"

	"github.com/apex/log"
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/cyphar/dedupblob/block"
)

// fingerprintEstimate and fingerprintFalsePositive size the Bloom filter
// that backs the fingerprint set. They are a starting capacity, not a
// hard cap: bits-and-blooms/bloom degrades gracefully (a rising but
// bounded false-positive rate, never a false negative) once more distinct
// fingerprints are inserted than the estimate, which is exactly the
// slack invariant I3 allows ("the converse need not hold").
const (
	fingerprintEstimate      = 1 << 20
	fingerprintFalsePositive = 0.001
)

// Engine is an in-memory repo.Engine.
type Engine struct {
	blockSize int
	blocks    map[block.Key][]byte
	files     map[string][]block.Key
	fprints   *bloom.BloomFilter
}

// New returns an empty in-memory Engine with the given block size. Panics
// if blockSize is not positive: the deduplicator is specified entirely in
// terms of a positive block size, and a non-positive one would make every
// invariant in repo.Engine's contract vacuous or undefined.
func New(blockSize int) *Engine {
	if blockSize <= 0 {
		panic("dedupblob/repo/memory: block size must be positive")
	}
	return &Engine{
		blockSize: blockSize,
		blocks:    make(map[block.Key][]byte),
		files:     make(map[string][]block.Key),
		fprints:   bloom.NewWithEstimates(fingerprintEstimate, fingerprintFalsePositive),
	}
}

// BlockSize implements repo.Engine.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// HasBlock implements repo.Engine.
func (e *Engine) HasBlock(key block.Key) bool {
	_, ok := e.blocks[key]
	return ok
}

// HasFingerprint implements repo.Engine.
func (e *Engine) HasFingerprint(fingerprint uint32) bool {
	return e.fprints.Test(fingerprintBytes(fingerprint))
}

// PutBlock implements repo.Engine.
func (e *Engine) PutBlock(key block.Key, data []byte) {
	if _, ok := e.blocks[key]; ok {
		return
	}
	// Copy, so the caller's buffer (which the deduplicator reuses across
	// commits) can't mutate a stored block out from under us.
	stored := make([]byte, len(data))
	copy(stored, data)
	e.blocks[key] = stored

	log.WithFields(log.Fields{
		"key":  key,
		"size": len(data),
	}).Debugf("memory: stored new block")
}

// PutFingerprint implements repo.Engine.
func (e *Engine) PutFingerprint(fingerprint uint32) {
	e.fprints.Add(fingerprintBytes(fingerprint))
}

// GetBlock implements repo.Engine.
func (e *Engine) GetBlock(key block.Key) ([]byte, bool) {
	data, ok := e.blocks[key]
	return data, ok
}

// PutFile implements repo.Engine.
func (e *Engine) PutFile(name string, keys []block.Key) {
	stored := make([]block.Key, len(keys))
	copy(stored, keys)
	e.files[name] = stored
}

// GetFile implements repo.Engine.
func (e *Engine) GetFile(name string) ([]block.Key, bool) {
	keys, ok := e.files[name]
	return keys, ok
}

func fingerprintBytes(fingerprint uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], fingerprint)
	return buf[:]
}
