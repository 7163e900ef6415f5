/*
 * psys - Debugger command executer.
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

// Package parser implements the debugger's command table: a small set
// of commands (step, continue, breakpoint, backtrace, regs, examine,
// quit) matched by minimum-unambiguous-prefix, the same dispatch shape
// as the teacher's command/parser package generalized from S/370
// device attach/detach/show commands — which have no p-System
// analogue — to interpreter inspection and control.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ucsd-psys-vm/psys/vm/interp"
	"github.com/ucsd-psys-vm/psys/vm/layout"
	"github.com/ucsd-psys-vm/psys/vm/opcode"
)

// Session holds debugger-owned state across commands: the
// interpreter being inspected and the active breakpoint set.
type Session struct {
	Interp      *interp.Interp
	Breakpoints map[uint32]bool
	Running     bool
}

type cmdLine struct {
	words []string
}

type cmd struct {
	Name    string
	Min     int
	Process func(line *cmdLine, s *Session) (quit bool, err error)
}

var cmdList = []cmd{
	{Name: "continue", Min: 1, Process: cmdContinue},
	{Name: "step", Min: 1, Process: cmdStep},
	{Name: "break", Min: 3, Process: cmdBreak},
	{Name: "delete", Min: 3, Process: cmdDelete},
	{Name: "backtrace", Min: 2, Process: cmdBacktrace},
	{Name: "regs", Min: 1, Process: cmdRegs},
	{Name: "examine", Min: 2, Process: cmdExamine},
	{Name: "quit", Min: 1, Process: cmdQuit},
}

func matchCommand(name string) (*cmd, error) {
	name = strings.ToLower(name)
	var match *cmd
	for i := range cmdList {
		c := &cmdList[i]
		if len(name) < c.Min || len(name) > len(c.Name) {
			continue
		}
		if c.Name[:len(name)] == name {
			if match != nil {
				return nil, fmt.Errorf("ambiguous command: %q", name)
			}
			match = c
		}
	}
	if match == nil {
		return nil, fmt.Errorf("unknown command: %q", name)
	}
	return match, nil
}

// ProcessCommand parses and runs a single line of debugger input.
func ProcessCommand(text string, s *Session) (quit bool, err error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false, nil
	}
	c, err := matchCommand(fields[0])
	if err != nil {
		return false, err
	}
	return c.Process(&cmdLine{words: fields[1:]}, s)
}

// CompleteCmd implements liner's tab-completion callback.
func CompleteCmd(line string) []string {
	var out []string
	for _, c := range cmdList {
		if strings.HasPrefix(c.Name, strings.ToLower(line)) {
			out = append(out, c.Name)
		}
	}
	return out
}

func (l *cmdLine) hexWord() (uint32, error) {
	if len(l.words) == 0 {
		return 0, errors.New("expected an address")
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(l.words[0], "0x"), 16, 32)
	l.words = l.words[1:]
	return uint32(v), err
}

func cmdContinue(_ *cmdLine, s *Session) (bool, error) {
	s.Running = true
	for s.Running {
		if s.Breakpoints[s.Interp.IPC] {
			fmt.Printf("breakpoint at %#x\n", s.Interp.IPC)
			break
		}
		if err := s.Interp.Step(); err != nil {
			return false, err
		}
	}
	return false, nil
}

func cmdStep(_ *cmdLine, s *Session) (bool, error) {
	err := s.Interp.Step()
	fmt.Println(s.Interp.String())
	return false, err
}

func cmdBreak(line *cmdLine, s *Session) (bool, error) {
	addr, err := line.hexWord()
	if err != nil {
		return false, err
	}
	if s.Breakpoints == nil {
		s.Breakpoints = map[uint32]bool{}
	}
	s.Breakpoints[addr] = true
	fmt.Printf("breakpoint set at %#x\n", addr)
	return false, nil
}

func cmdDelete(line *cmdLine, s *Session) (bool, error) {
	addr, err := line.hexWord()
	if err != nil {
		return false, err
	}
	delete(s.Breakpoints, addr)
	return false, nil
}

func cmdBacktrace(_ *cmdLine, s *Session) (bool, error) {
	mp := s.Interp.MP
	for depth := 0; depth < 64 && mp != 0; depth++ {
		fmt.Printf("#%d mp=%#x\n", depth, mp)
		next := uint32(s.Interp.Mem.Ldw(mp - uint32(layout.MSCWSize) + layout.MSCWMsdyn))
		if next == mp {
			break
		}
		mp = next
	}
	return false, nil
}

func cmdRegs(_ *cmdLine, s *Session) (bool, error) {
	fmt.Println(s.Interp.String())
	return false, nil
}

func cmdExamine(line *cmdLine, s *Session) (bool, error) {
	addr, err := line.hexWord()
	if err != nil {
		return false, err
	}
	v := s.Interp.Mem.Ldw(addr)
	op := opcode.Describe(byte(v))
	fmt.Printf("%#x: %#04x (as opcode: %s)\n", addr, v, op.Mnemonic)
	return false, nil
}

func cmdQuit(_ *cmdLine, _ *Session) (bool, error) {
	return true, nil
}
