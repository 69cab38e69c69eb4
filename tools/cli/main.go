// Package main is the entry point for the scorecard CLI tool, which talks to
// a running scorecard-api instance to inspect and feed the leaderboard.
package main

import "github.com/ballistic/scorecard-api/tools/cli/cmd"

func main() {
	cmd.Execute()
}
