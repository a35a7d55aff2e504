/*sort canonicalizes a simulation parameter file: comments and blank lines
are removed and the remaining lines are sorted by key and aligned.

    sort <input_file> <output_file>
*/
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/phil-mansfield/gridpipe/params"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: sort <input_file> <output_file>")
		os.Exit(1)
	}
	in, out := os.Args[1], os.Args[2]

	if err := params.CanonicalizeFile(in, out); err != nil {
		log.Fatal(err.Error())
	}
	fmt.Printf("Processed %s and saved to %s.\n", in, out)
}
