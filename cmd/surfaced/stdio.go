package main

import (
	"flag"

	"github.com/Comcast/surface/sio"
)

func NewStdCouplings(args []string) (*sio.Stdio, *flag.FlagSet) {

	var (
		std = sio.NewStdio(false)
		fs  = flag.NewFlagSet("std", flag.ExitOnError)
	)

	fs.BoolVar(&std.EchoInput, "echo", false, "echo input")
	fs.BoolVar(&std.Timestamps, "ts", false, "print timestamps")
	fs.BoolVar(&std.ShellExpand, "sh", false, "shell-expand input")
	fs.BoolVar(&std.PadTags, "pad", false, "pad tags")
	fs.BoolVar(&std.Tags, "tags", true, "tags")
	fs.StringVar(&std.StateOutputFilename, "state-out", "", "state output filename")
	fs.StringVar(&std.StateInputFilename, "state-in", "", "state input filename")
	fs.BoolVar(&std.WriteStatePerResult, "write-state-result", false, "write state after each result")

	if args != nil {
		fs.Parse(args)
	}

	return std, fs
}
