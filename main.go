package main

import "github.com/KaramelBytes/gradectl/cmd"

func main() {
	cmd.Execute()
}
