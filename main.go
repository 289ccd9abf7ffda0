// The main package for the catalogue-crawler executable.
package main

import (
	"os"

	"github.com/JakeFAU/catalogue-crawler/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
