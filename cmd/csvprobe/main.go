package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"csvload/internal/probe"
	"csvload/internal/source"
)

// main probes a CSV source before loading it: prints the columns a load
// would create, the sniffed delimiter, and per-column uniqueness over a
// bounded sample. Useful for checking a file and picking flags before
// running csvload against a real database.
func main() {
	var (
		sourceURI string
		maxBytes  int
		delimiter string
		encoding  string
	)

	flag.StringVar(&sourceURI, "source", "", "source CSV location: path, file:// or s3:// URI")
	flag.IntVar(&maxBytes, "max-bytes", probe.DefaultMaxBytes, "how much of the source to sample")
	flag.StringVar(&delimiter, "delimiter", "", "field delimiter; sniffed from the sample when empty")
	flag.StringVar(&encoding, "encoding", "", "source charset when not UTF-8 (e.g. windows-1250)")
	flag.Parse()

	_ = godotenv.Load()

	if sourceURI == "" {
		fmt.Fprintln(os.Stderr, "usage: csvprobe -source <path|file://|s3://> [-max-bytes n] [-delimiter c]")
		os.Exit(2)
	}

	var delim rune
	if delimiter != "" {
		runes := []rune(delimiter)
		if len(runes) != 1 {
			log.Fatalf("delimiter must be a single character, got %q", delimiter)
		}
		delim = runes[0]
	}

	src, err := source.Resolve(sourceURI, source.S3ConfigFromEnv())
	if err != nil {
		log.Fatalf("%v", err)
	}

	rep, err := probe.Run(context.Background(), src, probe.Options{
		MaxBytes:  maxBytes,
		Delimiter: delim,
		Encoding:  encoding,
	})
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Println(probe.Render(rep))
}
