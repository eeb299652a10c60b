package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alparslanahmed/digitnorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Digit Normalizer - Simple Example")
		fmt.Println("")
		fmt.Println("Usage: go run example/simple/main.go <path-to-image> [out-dir]")
		fmt.Println("")
		fmt.Println("Example:")
		fmt.Println("  go run example/simple/main.go seven.png out")
		os.Exit(1)
	}

	imagePath := os.Args[1]
	outDir := "out"
	if len(os.Args) > 2 {
		outDir = os.Args[2]
	}

	// Verify file exists
	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		log.Fatalf("File not found: %s", imagePath)
	}

	fmt.Printf("Normalizing: %s\n\n", imagePath)
	result, err := digitnorm.NewNormalizer().NormalizeFile(imagePath)
	if err != nil {
		log.Fatalf("Failed to normalize image: %v", err)
	}

	artifacts, err := digitnorm.SaveArtifacts(outDir, "digit", result)
	if err != nil {
		log.Fatalf("Failed to save images: %v", err)
	}

	fmt.Printf("Features: %d values\n", len(result.Features))
	fmt.Printf("Canvas:   %s\n", artifacts.Canvas)
	fmt.Printf("Preview:  %s\n", artifacts.Preview)
}
