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

// Package dedupblob is a content-addressed, deduplicating blob store: save a
// named byte stream once, and every later save of content that overlaps a
// previously-seen block -- at any byte offset, not only ones aligned to a
// prior save -- reuses the stored block instead of writing it again.
//
// A Store is a thin façade over three collaborating packages: block (content
// addressing), rolling (the candidate filter that makes offset-independent
// matching affordable) and repo (the storage contract), with dedup gluing
// them into the single-pass scan that does the actual work. Most callers
// only need this package.
package dedupblob

import (
	"io"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/cyphar/dedupblob/dedup"
	"github.com/cyphar/dedupblob/repo"
	"github.com/cyphar/dedupblob/repo/memory"
)

// Stats reports what a Save call did: how many blocks it wrote versus
// reused, and how often the rolling-checksum filter flagged a candidate
// that didn't survive digest confirmation.
type Stats = dedup.Stats

// Store saves and loads named byte streams against a single repo.Engine,
// deduplicating blocks across every Save call made against it.
//
// A Store is not safe for concurrent use: callers sharing one across
// goroutines must serialize their own Save and Load calls, the same
// requirement repo.Engine places on its callers.
type Store struct {
	rep repo.Engine
}

// New returns a Store backed by a fresh in-memory repository with the given
// block size. Use NewWithEngine to supply a different repo.Engine
// implementation.
func New(blockSize int) *Store {
	return NewWithEngine(memory.New(blockSize))
}

// NewWithEngine returns a Store backed by rep.
func NewWithEngine(rep repo.Engine) *Store {
	return &Store{rep: rep}
}

// Save reads r to completion, splits it into blocks (deduplicating against
// every block this Store has ever seen, regardless of which prior Save
// introduced it), and records the resulting key list under name, replacing
// any key list previously saved under that name.
//
// An error is only ever an I/O error from r, wrapped with context; on error,
// no key list is recorded under name, though the repository may have
// gained blocks from the portion of r that was read before the failure.
func (s *Store) Save(name string, r io.Reader) (Stats, error) {
	keys, stats, err := dedup.Scan(r, s.rep)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "save %q", name)
	}
	s.rep.PutFile(name, keys)

	log.WithFields(log.Fields{
		"name":       name,
		"new_blocks": stats.NewBlocks,
		"dup_blocks": stats.DupBlocks,
		"roll_false": stats.RollFalse,
	}).Debugf("dedupblob: saved")
	return stats, nil
}

// Load writes the byte stream previously saved under name to w, exactly
// reproducing what was passed to Save.
//
// Load returns ErrNotFound if name was never saved, and ErrCorruptDatabase
// if the recorded key list references a block the repository no longer
// has -- which, since Save only ever records keys for blocks it just
// confirmed are present, means the repository was modified or damaged by
// something other than this package.
func (s *Store) Load(name string, w io.Writer) error {
	keys, ok := s.rep.GetFile(name)
	if !ok {
		return errors.Wrapf(ErrNotFound, "load %q", name)
	}
	for _, key := range keys {
		data, ok := s.rep.GetBlock(key)
		if !ok {
			return errors.Wrapf(ErrCorruptDatabase, "load %q: missing block %s", name, key)
		}
		if _, err := w.Write(data); err != nil {
			return errors.Wrapf(err, "load %q", name)
		}
	}
	return nil
}
