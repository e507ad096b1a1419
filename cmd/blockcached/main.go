package main

import "github.com/javi11/altmount/cmd/blockcached/cmd"

func main() {
	cmd.Execute()
}
