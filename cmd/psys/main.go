/*
 * psys - Main process.
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

package main

import (
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	getopt "github.com/pborman/getopt/v2"

	"github.com/ucsd-psys-vm/psys/command/parser"
	"github.com/ucsd-psys-vm/psys/command/reader"
	config "github.com/ucsd-psys-vm/psys/config/configparser"
	"github.com/ucsd-psys-vm/psys/vm/binding"
	"github.com/ucsd-psys-vm/psys/vm/boot"
	"github.com/ucsd-psys-vm/psys/vm/rsp"
	logger "github.com/ucsd-psys-vm/psys/util/logger"

	_ "github.com/ucsd-psys-vm/psys/config/debugconfig"
)

var Logger *slog.Logger

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Quirks configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optFullscreen := getopt.BoolLong("fullscreen", 0, "Start the host window fullscreen")
	optRenderer := getopt.StringLong("renderer", 0, "basic", "Host renderer: basic|hq4x")
	optDebug := getopt.BoolLong("debugger", 'd', "Drop into the debugger console instead of running")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.SetParameters("floppy-image")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(1)
	}

	args := getopt.Args()
	if len(args) != 1 {
		getopt.Usage()
		os.Exit(1)
	}
	floppyPath := args[0]

	var file *os.File
	if *optLogFile != "" {
		file, _ = os.Create(*optLogFile)
	}
	debugFlag := false
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	Logger = slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, &debugFlag))
	slog.SetDefault(Logger)

	Logger.Info("psys started", "image", floppyPath, "renderer", *optRenderer, "fullscreen", *optFullscreen)

	if *optConfig != "" {
		if err := config.LoadConfigFile(*optConfig); err != nil {
			Logger.Error(err.Error())
			os.Exit(1)
		}
	}

	image, err := os.ReadFile(floppyPath)
	if err != nil {
		Logger.Error("unable to read floppy image", "error", err.Error())
		os.Exit(1)
	}

	interpreter, _, err := boot.Bootstrap(boot.Options{Image: image})
	if err != nil {
		Logger.Error("bootstrap failed", "error", err.Error())
		os.Exit(1)
	}

	rspState, rspBinding := rsp.New()
	_ = rspState
	registry := binding.NewRegistry()
	registry.Add(rspBinding)
	boot.WireBindings(interpreter, registry)

	if *optDebug {
		session := &parser.Session{Interp: interpreter, Breakpoints: map[uint32]bool{}}
		reader.ConsoleReader(session)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- interpreter.Run()
	}()

	select {
	case <-sigChan:
		Logger.Info("got quit signal")
	case err := <-done:
		if err != nil {
			Logger.Error("interpreter halted", "error", err.Error())
		}
	}
}
