// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"fmt"
	"os"

	"gitlab.com/tozd/go/errors"
)

func main() {
	cmd := NewCommand()
	err := cmd.ExecuteContext(context.Background())
	os.Exit(exitCode(err))
}

// 🚦 exitError carries a run outcome to the process exit code
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string {
	return e.message
}

// exitCode prints unexpected errors and maps the rest to their codes
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exitError
	if errors.As(err, &eerr) {
		return eerr.code
	}
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	return 1
}
