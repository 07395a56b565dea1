package main

import "github.com/sharedesk/contenthub/internal/cli/cmd"

func main() {
	cmd.Execute()
}
