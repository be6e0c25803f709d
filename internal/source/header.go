// Copyright 2018 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package source

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/biogo/hts/sam"
)

var tagRe = regexp.MustCompile(`\b(SN|AN):(\S+)`)

// resolveReference finds the reference called name in header, either by its
// name or by one of the alternative names listed in the AN tag of its @SQ
// line in text.
func resolveReference(header *sam.Header, text []byte, name string) (*sam.Reference, error) {
	refs := header.Refs()
	for _, ref := range refs {
		if ref.Name() == name {
			return ref, nil
		}
	}
	if id, ok := referenceID(text, name); ok && id < len(refs) {
		return refs[id], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrReferenceNotFound, name)
}

// referenceID returns the index among the @SQ lines of text of the line
// naming reference.
//
//	@SQ SN:foo LN:5 AN:bar,baz ...
func referenceID(text []byte, reference string) (int, bool) {
	var current int

	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineLength)
	for scanner.Scan() {
		if !strings.HasPrefix(scanner.Text(), "@SQ") {
			continue
		}
		for _, tag := range tagRe.FindAllStringSubmatch(scanner.Text(), -1) {
			switch tag[1] {
			case "SN":
				if tag[2] == reference {
					return current, true
				}
			case "AN":
				for _, alias := range strings.Split(tag[2], ",") {
					if alias == reference {
						return current, true
					}
				}
			}
		}
		current++
	}
	return 0, false
}
