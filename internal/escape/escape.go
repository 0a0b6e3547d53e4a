// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package escape turns literal backslash sequences in tool output into the
// control characters they stand for, so results render as text instead of
// showing "\n" verbatim.
package escape

import "strings"

// replacer applies the sequences in order. "\r\n" must come first or "\n"
// would eat its tail and leave a stray "\r" half.
var replacer = strings.NewReplacer(
	`\r\n`, "\r\n",
	`\n`, "\n",
	`\r`, "\r",
	`\t`, "\t",
)

// Unescape replaces the two-character sequences \r\n, \n, \r and \t with
// CR LF, LF, CR and TAB. Text without a backslash is returned as-is.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return replacer.Replace(s)
}

// Value applies Unescape to strings and returns any other value unchanged.
func Value(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return Unescape(s)
}
