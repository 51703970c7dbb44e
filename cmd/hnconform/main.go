// Command hnconform checks the Hacker News API against its contracts.
package main

import (
	"os"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
