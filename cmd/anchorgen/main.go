// Command anchorgen writes the pose detector anchor table as CSV.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ayusman/tala/internal/anchors"
)

func main() {
	out := flag.String("o", "", "output file, stdout if empty")
	flag.Parse()

	if err := run(*out); err != nil {
		fmt.Fprintf(os.Stderr, "anchorgen: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	if path == "" {
		_, err := write(os.Stdout)
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func write(w io.Writer) (int64, error) {
	return anchors.Generate(anchors.PoseDetectorOptions()).WriteTo(w)
}
