package main

import "github.com/kamusis/sentari/cmd"

func main() {
	cmd.Execute()
}
