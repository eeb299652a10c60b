package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/alparslanahmed/digitnorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run example/main.go <path-to-image>")
		os.Exit(1)
	}

	imagePath := os.Args[1]

	// Create a normalizer
	normalizer := digitnorm.NewNormalizer()
	normalizer.SetInvertMode(digitnorm.InvertAuto)

	// Normalize the image
	result, err := normalizer.NormalizeFile(imagePath)
	if err != nil {
		log.Fatalf("Failed to normalize image: %v", err)
	}

	// Print the trace as JSON
	jsonData, err := json.MarshalIndent(result.Trace, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal JSON: %v", err)
	}

	fmt.Println(string(jsonData))

	fmt.Println("\n=== Normalized Canvas ===")
	fmt.Print(digitnorm.RenderASCII(result.Canvas))

	prediction, err := digitnorm.NewHeuristicClassifier().Predict(context.Background(), result.Features)
	if err != nil {
		log.Fatalf("Failed to classify: %v", err)
	}

	fmt.Println("\n=== Prediction ===")
	fmt.Printf("Digit: %d (%.1f%%)\n", prediction.Label, prediction.Confidence()*100)
	for digit, p := range prediction.Probabilities {
		fmt.Printf("  - %d: %.4f\n", digit, p)
	}
}
