package main

import "github.com/example/amenity-reservations/cmd"

func main() {
	cmd.Execute()
}
