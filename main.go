package main

import "github.com/kamusis/valcache/cmd"

func main() {
	cmd.Execute()
}
