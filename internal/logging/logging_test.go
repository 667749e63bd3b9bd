/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		name string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"quiet", zerolog.ErrorLevel},
		{"DEBUG", zerolog.DebugLevel},
		{" info ", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.name); got != tc.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestParseLevelEnvFallback(t *testing.T) {
	t.Setenv("BRAGI_LOG_LEVEL", "debug")
	if got := ParseLevel(""); got != zerolog.DebugLevel {
		t.Errorf("ParseLevel(\"\") with BRAGI_LOG_LEVEL=debug = %s, want debug", got)
	}

	t.Setenv("BRAGI_LOG_LEVEL", "")
	t.Setenv("LOG_LEVEL", "warn")
	if got := ParseLevel(""); got != zerolog.WarnLevel {
		t.Errorf("ParseLevel(\"\") with LOG_LEVEL=warn = %s, want warn", got)
	}

	t.Setenv("LOG_LEVEL", "")
	if got := ParseLevel(""); got != zerolog.InfoLevel {
		t.Errorf("ParseLevel(\"\") with no env = %s, want info", got)
	}
}
