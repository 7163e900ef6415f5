/*
 * psys - Debug quirk registration.
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

// Package debugconfig registers the quirk-file switches
// "debug-on-fault", "debug-call" and "debug-task" and the option
// "disk-wrap", recording them in the flag variables below; no other
// package reads those variables. Imported for side effect only, the way the
// teacher's own debugconfig wires itself into config/configparser
// from an init().
package debugconfig

import (
	"strings"

	config "github.com/ucsd-psys-vm/psys/config/configparser"
)

// Flags set by the quirk file when LoadConfigFile runs. cmd/psys
// imports this package for its init() only and does not read them.
var (
	DebugOnFault bool
	DebugCall    bool
	DebugTask    bool
	DiskWrapMode string
)

func init() {
	config.RegisterSwitch("debug-on-fault", func() error {
		DebugOnFault = true
		return nil
	})
	config.RegisterSwitch("debug-call", func() error {
		DebugCall = true
		return nil
	})
	config.RegisterSwitch("debug-task", func() error {
		DebugTask = true
		return nil
	})
	config.RegisterOption("disk-wrap", func(value string) error {
		DiskWrapMode = strings.ToUpper(value)
		return nil
	})
}
