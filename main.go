package main

import "github.com/mj1618/desktopd/cmd"

func main() {
	cmd.Execute()
}
