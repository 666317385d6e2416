// The main package for the reviewcrawler executable.
package main

import "github.com/ignacioe7/reviewcrawler/cmd"

func main() {
	cmd.Execute()
}
