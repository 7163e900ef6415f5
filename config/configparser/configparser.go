/*
 * psys - Quirks-file configuration parser
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

// Package configparser reads the optional quirks file: a small
// line-oriented format naming boot/runtime quirks (the options that
// config/debugconfig registers: disk-wrap, debug-on-fault, debug-call,
// debug-task) rather than
// the teacher's device/model catalog. The parsing style — a registry
// of option names populated by each consumer's init(), a hand-rolled
// line scanner, fail loud on the first bad line — is carried over
// directly from the teacher's config/configparser; only the vocabulary
// of what a line can name has changed, since this VM has no device
// models to attach.
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Option value kinds a quirk can accept.
const (
	TypeSwitch = 1 + iota // boolean flag, no value
	TypeOption             // a single string/number value
)

type optionDef struct {
	ty     int
	create func(value string) error
}

var options = map[string]optionDef{}

// OptionList records every quirk name seen while parsing, in file
// order, mirroring the teacher's ModelList used by its show/reset "all"
// commands.
var OptionList []string

var lineNumber int

// RegisterSwitch should be called from a consuming package's init():
// it installs a boolean quirk name that takes no value.
func RegisterSwitch(name string, fn func() error) {
	options[strings.ToUpper(name)] = optionDef{ty: TypeSwitch, create: func(string) error { return fn() }}
}

// RegisterOption installs a quirk name that takes a single value.
func RegisterOption(name string, fn func(value string) error) {
	options[strings.ToUpper(name)] = optionDef{ty: TypeOption, create: fn}
}

type line struct {
	text string
	pos  int
}

func (l *line) skipSpace() {
	for l.pos < len(l.text) && (l.text[l.pos] == ' ' || l.text[l.pos] == '\t') {
		l.pos++
	}
}

func (l *line) isEOL() bool {
	l.skipSpace()
	return l.pos >= len(l.text) || l.text[l.pos] == '#'
}

func (l *line) getWord() string {
	l.skipSpace()
	start := l.pos
	for l.pos < len(l.text) && l.text[l.pos] != ' ' && l.text[l.pos] != '\t' && l.text[l.pos] != '#' {
		l.pos++
	}
	return l.text[start:l.pos]
}

// parse handles one non-blank, non-comment line: <name> [value].
func (l *line) parse() error {
	name := strings.ToUpper(l.getWord())
	if name == "" {
		return nil
	}
	def, ok := options[name]
	if !ok {
		return fmt.Errorf("line %d: unknown quirk option %q", lineNumber, name)
	}

	OptionList = append(OptionList, name)

	switch def.ty {
	case TypeSwitch:
		if !l.isEOL() {
			return fmt.Errorf("line %d: %q takes no value", lineNumber, name)
		}
		return def.create("")
	case TypeOption:
		if l.isEOL() {
			return fmt.Errorf("line %d: %q requires a value", lineNumber, name)
		}
		return def.create(l.getWord())
	}
	return errors.New("configparser: unreachable option type")
}

// LoadConfigFile reads and applies every quirk line in name. A missing
// file is not an error — quirks are optional and the VM runs with
// built-in defaults.
func LoadConfigFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	return parseReader(f)
}

func parseReader(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNumber = 0
	for scanner.Scan() {
		lineNumber++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		l := &line{text: text}
		if err := l.parse(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ParseUintOption is a convenience helper consumers use inside their
// RegisterOption callback to parse a decimal or 0x-prefixed value.
func ParseUintOption(value string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(value, "0x"), hexOrDec(value), 32)
}

func hexOrDec(value string) int {
	if strings.HasPrefix(value, "0x") {
		return 16
	}
	return 10
}
