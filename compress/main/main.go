package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/phil-mansfield/gridpipe/compress"
)

func main() {
	var (
		remove bool
	)
	flag.BoolVar(
		&remove, "Remove", false,
		"Delete each .raw.zst archive after it has been unpacked.",
	)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Usage: unpack [-Remove] <data_dir>")
	}

	sum, err := compress.Unpack(flag.Arg(0), remove)
	if err != nil {
		log.Fatal(err.Error())
	}
	fmt.Printf(
		"Unpacked %d grids: %d bytes from %d bytes of archives.\n",
		sum.Files, sum.BytesIn, sum.BytesOut,
	)
}
