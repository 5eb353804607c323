package main

import "github.com/inovacc/gitsafe/cmd"

func main() {
	cmd.Execute()
}
