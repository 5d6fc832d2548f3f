/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// JS renders a Msg, Result, or anything else as one line of JSON.
// Falls back to '%#v'.
func JS(x interface{}) string {
	if x == nil {
		return "null"
	}
	js, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(js)
}

var inlineCommand = regexp.MustCompile(`<<(.*?)>>`)

// ShellExpand replaces each <<command>> in an input line with the
// command's output (trailing newline removed), so a line like
//
//	{"variables":{"clock:now":<<date +%s>>}}
//
// can carry a computed value.  Only for trusted input.
func ShellExpand(ctx context.Context, line string) (string, error) {
	var failed error
	acc := inlineCommand.ReplaceAllStringFunc(line, func(m string) string {
		if failed != nil {
			return ""
		}
		sh := inlineCommand.FindStringSubmatch(m)[1]
		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, "sh", "-c", sh)
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			failed = fmt.Errorf("shell error %s on %q", err, sh)
			return ""
		}
		return strings.TrimRight(out.String(), "\n")
	})
	if failed != nil {
		return "", failed
	}
	return acc, nil
}
