// Command bcdump loads a YAML role fixture (the same format used by the
// project package's scenario tests), compiles it, and prints its
// disassembled bytecode plus entity/script location table. It is a
// developer tool, not part of the embedding API (SPEC_FULL.md §6.1),
// grounded on the teacher's cmd/dump_verb / cmd/dump_prop tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dragazo/NetsBlox-vm/bytecode"
	"github.com/dragazo/NetsBlox-vm/project"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bcdump <fixture.yaml>",
		Short: "Disassemble a compiled role fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return dump(args[0])
		},
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dump(path string) error {
	f, err := project.LoadFixture(path)
	if err != nil {
		return fmt.Errorf("loading fixture: %w", err)
	}
	role, err := f.BuildRole()
	if err != nil {
		return fmt.Errorf("building role: %w", err)
	}
	code, err := bytecode.Compile(role)
	if err != nil {
		return fmt.Errorf("compiling role: %w", err)
	}
	fmt.Print(bytecode.Disassemble(code))
	return nil
}
