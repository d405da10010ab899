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

package dedupblob_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dedupblob "github.com/cyphar/dedupblob"
	"github.com/cyphar/dedupblob/block"
	"github.com/cyphar/dedupblob/repo"
	"github.com/cyphar/dedupblob/repo/memory"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := dedupblob.New(8)
	const input = "the quick brown fox jumps over the lazy dog"

	_, err := s.Save("fox", strings.NewReader(input))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.Load("fox", &out))
	assert.Equal(t, input, out.String())
}

func TestSaveSecondCallDeduplicatesAgainstFirst(t *testing.T) {
	s := dedupblob.New(4)

	_, err := s.Save("first", strings.NewReader("AAAABBBBCCCC"))
	require.NoError(t, err)

	stats, err := s.Save("second", strings.NewReader("ZZAAAABBBBCCCC"))
	require.NoError(t, err)

	assert.Equal(t, uint64(3), stats.DupBlocks)
	assert.Equal(t, uint64(1), stats.NewBlocks)

	var out bytes.Buffer
	require.NoError(t, s.Load("second", &out))
	assert.Equal(t, "ZZAAAABBBBCCCC", out.String())
}

func TestSaveOverwritesPriorName(t *testing.T) {
	s := dedupblob.New(4)
	_, err := s.Save("name", strings.NewReader("AAAABBBB"))
	require.NoError(t, err)

	_, err = s.Save("name", strings.NewReader("CCCCDDDD"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.Load("name", &out))
	assert.Equal(t, "CCCCDDDD", out.String())
}

func TestLoadUnknownNameReturnsErrNotFound(t *testing.T) {
	s := dedupblob.New(4)
	var out bytes.Buffer
	err := s.Load("missing", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, dedupblob.ErrNotFound)
}

// blockLosingEngine wraps a repo.Engine and makes every GetBlock report a
// miss, regardless of what the wrapped engine actually has stored. It lets a
// test simulate the repository corruption Load can observe (a key list
// referencing a block that is no longer in the block table) without reaching
// into memory.Engine's unexported fields.
type blockLosingEngine struct {
	repo.Engine
}

func (blockLosingEngine) GetBlock(block.Key) ([]byte, bool) {
	return nil, false
}

func TestLoadReturnsErrCorruptDatabaseWhenBlockMissing(t *testing.T) {
	s := dedupblob.NewWithEngine(blockLosingEngine{Engine: memory.New(4)})

	_, err := s.Save("fox", strings.NewReader("the quick brown fox jumps over the lazy dog"))
	require.NoError(t, err)

	var out bytes.Buffer
	err = s.Load("fox", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, dedupblob.ErrCorruptDatabase)
}

func TestSaveEmptyInput(t *testing.T) {
	s := dedupblob.New(4)
	stats, err := s.Save("empty", strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, dedupblob.Stats{}, stats)

	var out bytes.Buffer
	require.NoError(t, s.Load("empty", &out))
	assert.Empty(t, out.Bytes())
}

func TestSaveAndLoadManyNamesShareBlocks(t *testing.T) {
	s := dedupblob.New(4)
	inputs := map[string]string{
		"a": "AAAABBBBCCCC",
		"b": "BBBBCCCCDDDD",
		"c": "ZZZZAAAABBBBCCCCDDDD",
	}
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Save(name, strings.NewReader(inputs[name]))
		require.NoError(t, err)
	}
	for name, want := range inputs {
		var out bytes.Buffer
		require.NoError(t, s.Load(name, &out))
		assert.Equal(t, want, out.String(), "name %q", name)
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestSavePropagatesReadError(t *testing.T) {
	s := dedupblob.New(4)
	boom := errors.New("disk on fire")
	_, err := s.Save("broken", errReader{boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

// FuzzSaveLoadRoundTrip checks spec.md §8's round-trip property -- for any
// input and any positive block size, Load reproduces exactly what was
// handed to Save -- across randomly generated inputs and block sizes rather
// than the fixed cases above.
func FuzzSaveLoadRoundTrip(f *testing.F) {
	f.Add([]byte(""), 1)
	f.Add([]byte("hi"), 4)
	f.Add([]byte("the quick brown fox jumps over the lazy dog"), 8)
	f.Add([]byte("AAAABBBBCCCC"), 4)
	f.Add([]byte("ZZAAAABBBBCCCC"), 4)

	f.Fuzz(func(t *testing.T, data []byte, blockSize int) {
		bs := int(uint32(blockSize)%64) + 1 // keep bounded and always positive
		s := dedupblob.New(bs)

		_, err := s.Save("fuzz", bytes.NewReader(data))
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, s.Load("fuzz", &out))
		assert.Equal(t, data, out.Bytes())
	})
}
