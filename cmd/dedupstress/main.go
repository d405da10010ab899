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

// Command dedupstress is a conformance and benchmark driver for the
// dedupblob store. It is not part of the library; it exists to exercise
// Store.Save and Store.Load against whatever real data the caller feeds it
// via shell commands, the same way a fuzzer or a stress test exercises a
// library without being part of its public API.
package main

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"

	"github.com/apex/log"
	logcli "github.com/apex/log/handlers/cli"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	dedupblob "github.com/cyphar/dedupblob"
	"github.com/cyphar/dedupblob/internal/iohelpers"
)

// lineRegexp splits a "NAME: SHELL_COMMAND" line into its two captures.
var lineRegexp = regexp.MustCompile(`^([^:]*):\s*(.*)$`)

const usage = `stress and conformance driver for the dedupblob store`

func main() {
	app := cli.NewApp()
	app.Name = "dedupstress"
	app.Usage = usage
	app.Authors = []cli.Author{
		{
			Name:  "Aleksa Sarai",
			Email: "cyphar@cyphar.com",
		},
	}

	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "block-size",
			Usage: "target block size, in bytes, for the store under test",
			Value: 1024,
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "set log level to debug",
		},
	}

	app.Before = func(ctx *cli.Context) error {
		log.SetHandler(logcli.New(os.Stderr))
		if ctx.GlobalBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
		if ctx.GlobalInt("block-size") <= 0 {
			return errors.Errorf("--block-size must be positive, got %d", ctx.GlobalInt("block-size"))
		}
		return nil
	}

	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(ctx *cli.Context) error {
	store := dedupblob.New(ctx.GlobalInt("block-size"))
	digests := map[string][sha256.Size]byte{}

	fmt.Println("name                       new (bytes / chunks)  dup (bytes / chunks)")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		matches := lineRegexp.FindStringSubmatch(line)
		if matches == nil {
			return errors.Errorf("malformed input line: %q", line)
		}
		name, cmd := matches[1], matches[2]

		output, err := exec.Command("sh", "-c", cmd).Output()
		if err != nil {
			return errors.Wrapf(err, "run command for %q", name)
		}

		hasher := sha256.New()
		counted := iohelpers.CountReader(io.TeeReader(bytes.NewReader(output), hasher))

		stats, err := store.Save(name, counted)
		if err != nil {
			return errors.Wrapf(err, "save %q", name)
		}
		var digest [sha256.Size]byte
		copy(digest[:], hasher.Sum(nil))
		digests[name] = digest
		log.WithFields(log.Fields{
			"name":  name,
			"bytes": counted.BytesRead(),
		}).Debugf("command output consumed")

		fmt.Printf("%-24s %12d / %-6d %12d / %-6d fp=%d\n",
			name,
			stats.NewBytes, stats.NewBlocks,
			stats.DupBytes, stats.DupBlocks,
			stats.RollFalse,
		)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read stdin")
	}

	return verify(store, digests)
}

// verify reloads every name saved during the run and checks that its bytes
// hash back to the digest recorded when it was saved, the same round-trip
// assertion the store's own tests make, but here exercised against whatever
// real commands the caller chose to feed in.
func verify(store *dedupblob.Store, digests map[string][sha256.Size]byte) error {
	for name, want := range digests {
		var buf bytes.Buffer
		if err := store.Load(name, &buf); err != nil {
			return errors.Wrapf(err, "verify %q", name)
		}
		got := sha256.Sum256(buf.Bytes())
		if got != want {
			return errors.Errorf("verify %q: reloaded bytes do not match saved digest", name)
		}
		log.WithField("name", name).Debugf("verified")
	}
	log.Infof("verified %d saved name(s)", len(digests))
	return nil
}
