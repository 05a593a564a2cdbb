package main

import "github.com/SamarthP7704/cycle-guard-makeuc/cmd"

func main() {
	cmd.Execute()
}
