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

package dedupblob

import (
	"fmt"
)

// Exposed sentinel errors. Use errors.Is (or pkg/errors.Cause plus ==) to
// test for these against an error returned by Save or Load; both are wrapped
// with call-site context before being returned.
var (
	// ErrNotFound is returned by Load when no file has ever been saved
	// under the given name.
	ErrNotFound = fmt.Errorf("name not found in repository")

	// ErrCorruptDatabase is returned when a file's key list references a
	// block the repository does not have. Since Save only ever writes key
	// lists whose blocks it just stored or already had (I1), this
	// indicates the repository was corrupted by something outside this
	// package's control, not a bug in Save itself.
	ErrCorruptDatabase = fmt.Errorf("corrupt database: referenced block missing")
)
