package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "snake-arena/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under From from importing anything under To.
type rule struct {
	From string
	To   string
}

// layering keeps the simulation independent of its transports and the codec
// independent of the connection manager.
var layering = []rule{
	{From: "internal/world", To: "internal/hub"},
	{From: "internal/world", To: "internal/net"},
	{From: "internal/world", To: "internal/sim"},
	{From: "internal/sim", To: "internal/hub"},
	{From: "internal/sim", To: "internal/net"},
	{From: "internal/net/proto", To: "internal/hub"},
	{From: "internal/hub", To: "internal/net/ws"},
	{From: "internal/hub", To: "internal/net/session"},
	{From: "internal/journal", To: "internal/hub"},
	{From: "logging", To: "internal"},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	packages, err := decodePackages(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
		os.Exit(1)
	}

	if violations := check(packages, layering); len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(output []byte) ([]packageInfo, error) {
	decoder := json.NewDecoder(bytes.NewReader(output))
	var packages []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return packages, nil
			}
			return nil, err
		}
		packages = append(packages, pkg)
	}
}

func check(packages []packageInfo, rules []rule) []string {
	var violations []string
	for _, pkg := range packages {
		for _, r := range rules {
			if !within(pkg.ImportPath, modulePath+"/"+r.From) {
				continue
			}
			for _, imp := range pkg.Imports {
				if within(imp, modulePath+"/"+r.To) {
					violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	sort.Strings(violations)
	return violations
}

// within reports whether path is pkg or one of its subpackages.
func within(path, pkg string) bool {
	return path == pkg || strings.HasPrefix(path, pkg+"/")
}
