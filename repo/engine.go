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

// Package repo specifies the block repository contract: the set of
// operations a backend (in-memory, on-disk, remote) must provide for the
// deduplicator and the store façade to build on. It is specified as an
// interface rather than a concrete type so that alternate backends can be
// substituted without touching the scanner, the same way umoci's oci/cas
// package separates the cas.Engine contract from its directory-backed
// implementation.
package repo

import (
	"github.com/cyphar/dedupblob/block"
)

// Engine is the storage abstraction behind a Store: three logical tables
// (block-key -> block-bytes, file-name -> ordered key list, and a set of
// rolling-checksum fingerprints of stored full-size blocks) plus the
// membership and write operations the deduplicator needs to keep them
// consistent.
//
// Implementations must uphold, for their entire lifetime:
//
//   - Closure: every key in any file's key list is present in the block
//     table (I1).
//   - Content-addressing: for every (k, b) put via PutBlock, block.Sum(b)
//     == k (I2). Engine implementations are not required to re-verify
//     this; callers (the deduplicator) guarantee it.
//   - Fingerprint superset: every full-size (BlockSize-length) block ever
//     put has its rolling fingerprint present in the fingerprint set,
//     though the set may also contain fingerprints of blocks no longer
//     stored, or that never corresponded to a stored block at all (I3).
//   - Name uniqueness: at most one key list per name; PutFile replaces
//     any prior key list for the same name (I4).
//   - Size bound: every stored block has length in [1, BlockSize] (I5).
//
// An Engine is not required to be safe for concurrent use; its callers
// must serialize access to a single Engine. Store does not do this itself:
// it passes the same requirement on to its own callers.
type Engine interface {
	// BlockSize is the target/maximum block length this repository was
	// constructed with. It is immutable for the engine's lifetime.
	BlockSize() int

	// HasBlock reports whether a block with the given key is stored.
	HasBlock(key block.Key) bool

	// HasFingerprint reports whether the rolling-checksum fingerprint is
	// present in the fingerprint set. A true result does not guarantee a
	// matching full-size block is still stored (the set may outlive its
	// blocks, and in a probabilistic implementation may also answer true
	// for a fingerprint that was never inserted).
	HasFingerprint(fingerprint uint32) bool

	// PutBlock stores a block's bytes under key. The caller guarantees
	// block.Sum(data) == key; PutBlock does not re-derive the key. It is
	// idempotent: storing the same (key, data) more than once is a no-op
	// from the caller's perspective.
	PutBlock(key block.Key, data []byte)

	// PutFingerprint adds a rolling-checksum fingerprint to the
	// fingerprint set. Idempotent; the set never shrinks.
	PutFingerprint(fingerprint uint32)

	// GetBlock returns the bytes stored under key. ok is false if the key
	// is not present, which (given the deduplicator only ever references
	// keys it has just stored) indicates repository corruption rather
	// than a normal miss.
	GetBlock(key block.Key) (data []byte, ok bool)

	// PutFile replaces the key list stored under name with keys,
	// discarding any previous key list for that name. It does not touch
	// the block table: blocks referenced only by the replaced key list
	// become unreferenced, not deleted.
	PutFile(name string, keys []block.Key)

	// GetFile returns the key list stored under name. ok is false if no
	// file has ever been saved under that name.
	GetFile(name string) (keys []block.Key, ok bool)
}
