package main

import "github.com/dilshanwn/movie-tickets-notifier/cmd"

func main() {
	cmd.Execute()
}
