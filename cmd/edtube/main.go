// Command edtube is the command line client for the EdTube backend.
package main

import "github.com/edtube/platform/internal/cli"

func main() {
	cli.Execute()
}
