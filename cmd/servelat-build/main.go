package main

import "github.com/nowm/servelat-build/cmd/servelat-build/cmd"

func main() {
	cmd.Execute()
}
