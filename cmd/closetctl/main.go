// Command closetctl runs wardrobe photo transformations from the shell.
package main

import "closet/internal/cli"

func main() {
	cli.Execute()
}
