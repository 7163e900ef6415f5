/*
 * psys - Quirks-file configuration parser test set.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package configparser

import (
	"strings"
	"testing"
)

func resetTest() {
	options = map[string]optionDef{}
	OptionList = nil
}

func TestSwitchOption(t *testing.T) {
	resetTest()
	var seen bool
	RegisterSwitch("frob", func() error { seen = true; return nil })

	if err := parseReader(strings.NewReader("frob\n")); err != nil {
		t.Fatalf("parseReader: %v", err)
	}
	if !seen {
		t.Errorf("expected switch callback to run")
	}
}

func TestSwitchRejectsValue(t *testing.T) {
	resetTest()
	RegisterSwitch("frob", func() error { return nil })

	if err := parseReader(strings.NewReader("frob yes\n")); err == nil {
		t.Fatal("expected error: switch option given a value")
	}
}

func TestOptionRequiresValue(t *testing.T) {
	resetTest()
	var got string
	RegisterOption("disk-wrap", func(value string) error { got = value; return nil })

	if err := parseReader(strings.NewReader("disk-wrap clamp\n")); err != nil {
		t.Fatalf("parseReader: %v", err)
	}
	if got != "clamp" {
		t.Errorf("option value = %q, want clamp", got)
	}

	if err := parseReader(strings.NewReader("disk-wrap\n")); err == nil {
		t.Fatal("expected error: option missing required value")
	}
}

func TestCommentsAndBlankLinesIgnored(t *testing.T) {
	resetTest()
	count := 0
	RegisterSwitch("frob", func() error { count++; return nil })

	err := parseReader(strings.NewReader("# a comment\n\nfrob\n  # trailing\n"))
	if err != nil {
		t.Fatalf("parseReader: %v", err)
	}
	if count != 1 {
		t.Errorf("callback ran %d times, want 1", count)
	}
}

func TestUnknownOptionErrors(t *testing.T) {
	resetTest()
	if err := parseReader(strings.NewReader("bogus\n")); err == nil {
		t.Fatal("expected error for unknown quirk option")
	}
}

func TestMissingConfigFileIsNotAnError(t *testing.T) {
	resetTest()
	if err := LoadConfigFile("/nonexistent/path/to/quirks.cfg"); err != nil {
		t.Fatalf("LoadConfigFile on missing file: %v", err)
	}
}
