package main

import "github.com/MithilSaiReddy/bujji/cmd"

func main() {
	cmd.Execute()
}
