package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nginxinc/gateway-cutover/internal/cutover"
	"github.com/nginxinc/gateway-cutover/internal/rules/source"
)

// Set during go build.
var version string

// Exit codes of the cutover tool.
const (
	exitOK                = 0
	exitVerificationFail  = 1
	exitPrecondition      = 2
	exitSourceUnavailable = 3
)

func main() {
	rootCmd := createRootCommand()

	rootCmd.AddCommand(
		createPrepareCommand(),
		createVerifyCommand(),
		createCutoverCommand(),
		createRollbackCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an operation error to the process exit code.
func exitCode(err error) int {
	var (
		sourceErr       *source.SourceUnavailableError
		verifyErr       *cutover.VerificationFailedError
		preconditionErr *cutover.PreconditionError
		inProgressErr   *cutover.CutoverInProgressError
		regressionErr   *cutover.PostCutRegressionError
	)

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &sourceErr):
		return exitSourceUnavailable
	case errors.As(err, &preconditionErr), errors.As(err, &inProgressErr):
		return exitPrecondition
	case errors.As(err, &verifyErr), errors.As(err, &regressionErr):
		return exitVerificationFail
	default:
		return exitVerificationFail
	}
}
