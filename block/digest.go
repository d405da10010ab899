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

// Package block defines the content-address used to identify a stored
// block, and the single place a block's digest is computed.
package block

import (
	"github.com/minio/sha256-simd"
	"github.com/opencontainers/go-digest"
)

// Algorithm is the only digest algorithm this store supports. A Key is
// always of this algorithm.
const Algorithm = digest.SHA256

// Key identifies a block by the cryptographic digest of its bytes. Two
// blocks with the same Key are considered identical; the repository never
// recomputes a Key once it has been given one by Sum.
type Key = digest.Digest

// Sum computes the Key for a block's contents. It is pure and
// deterministic: Sum(b) always returns the same Key for the same bytes,
// and is the only place in this module that computes a block's identity.
//
// The hash itself is computed with sha256-simd, a drop-in accelerated
// implementation of SHA-256; the resulting bytes (and therefore the Key)
// are bit-identical to crypto/sha256.
func Sum(data []byte) Key {
	h := sha256.New()
	// hash.Hash.Write never returns an error or a short write.
	_, _ = h.Write(data)
	return digest.NewDigestFromBytes(Algorithm, h.Sum(nil))
}
