// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2026 Datadog, Inc.

//go:build ignore

// This tool validates that every .go file of the module carries the license
// header. Run it from the repository root with `go run checkcopyright.go`.
package main

import (
	"bufio"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var header = []string{
	"// Unless explicitly stated otherwise all files in this repository are licensed",
	"// under the Apache License Version 2.0.",
	"// This product includes software developed at Datadog (https://www.datadoghq.com/).",
}

var copyrightLine = regexp.MustCompile(`^// Copyright (\d{4}-)?\d{4} Datadog, Inc\.$`)

func main() {
	var missing int
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// testdata, vendor and underscore directories are ignored by the go tool
			if name := d.Name(); path != "." && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		ok, err := hasHeader(path)
		if err != nil {
			return err
		}
		if !ok {
			missing++
			log.Printf("Copyright header missing in %q.", path)
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	if missing > 0 {
		os.Exit(1)
	}
}

func hasHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for _, want := range header {
		if !sc.Scan() || sc.Text() != want {
			return false, sc.Err()
		}
	}
	if !sc.Scan() {
		return false, sc.Err()
	}
	return copyrightLine.MatchString(sc.Text()), nil
}
