package main

import "app-reviews-pipeline/cmd"

func main() {
	cmd.Execute()
}
