//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/alparslanahmed/digitnorm"
	"github.com/alparslanahmed/digitnorm/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		writeToFile("Usage: go run debug_stages.go <image-file>\n")
		os.Exit(1)
	}

	imagePath := os.Args[1]

	n := digitnorm.NewNormalizer()
	n.SetLogger(logger.NewLogger(&logger.Config{Level: logger.DebugLevel, Output: os.Stdout, TimeFormat: "15:04:05"}))

	writeToFile("=== Testing NormalizeFile ===\n")
	res, err := n.NormalizeFile(imagePath)
	if err != nil {
		writeToFile(fmt.Sprintf("Error: %v\n", err))
		os.Exit(1)
	}
	writeToFile(fmt.Sprintf("Result: %+v\n", res.Trace))
	writeToFile(digitnorm.RenderASCII(res.Canvas))

	a, err := digitnorm.SaveArtifacts(os.TempDir(), "debug_stages", res)
	writeToFile(fmt.Sprintf("Artifacts: %+v, Error=%v\n", a, err))
}

func writeToFile(s string) {
	f, _ := os.OpenFile("/tmp/debug_stages_output.txt", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	defer f.Close()
	f.WriteString(s)
	fmt.Print(s) // Also print to stdout
}
