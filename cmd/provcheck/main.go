// Command provcheck runs declarative acceptance checks against a
// provisioned host group and writes a scored JSON report.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/roach88/provcheck/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(stderr, err)
		}
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
