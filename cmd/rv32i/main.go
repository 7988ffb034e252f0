package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v2"

	"github.com/rv32meta/emulator/pkg/asm"
	"github.com/rv32meta/emulator/pkg/cpu"
	"github.com/rv32meta/emulator/pkg/engine"
)

func main() {
	app := &cli.App{
		Name:      "rv32i",
		Usage:     "assemble and run an RV32I program with embedded assertions",
		Version:   "v0.0.1",
		ArgsUsage: "SOURCE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "trace",
				Aliases: []string{"t"},
				Usage:   "print PC before every step",
			},
			&cli.IntFlag{
				Name:  "mem-size",
				Usage: "memory size in bytes",
				Value: cpu.DefaultMemorySize,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		cli.ShowAppHelp(c)
		return cli.Exit("", 86)
	}

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("rv32i: %s", err), 1)
	}
	defer f.Close()

	prog, err := asm.Assemble(f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("rv32i: %s", err), 1)
	}

	machine := cpu.New(uint32(c.Int("mem-size")))
	machine.Out = os.Stdout

	if err := engine.LoadData(prog, machine); err != nil {
		return cli.Exit("", 1)
	}

	e := engine.New(prog, machine)
	e.Trace = c.Bool("trace")
	e.Run()

	return cli.Exit("", e.ExitCode())
}
