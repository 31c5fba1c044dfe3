package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/estimatorhq/takeoff-engine/internal/common"
	"github.com/estimatorhq/takeoff-engine/internal/scale"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		imagePath  = flag.String("image", "", "page image file (PNG/JPEG), optional")
		textPath   = flag.String("text", "", "file containing OCR text for the page, optional")
		scaleTexts = flag.String("scale-texts", "", "comma-separated title-block scale candidates, optional")
	)
	flag.Parse()

	if *imagePath == "" && *textPath == "" && *scaleTexts == "" {
		printError("Error: at least one of --image, --text, --scale-texts is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	var img image.Image
	if *imagePath != "" {
		loaded, err := imaging.Open(*imagePath)
		if err != nil {
			printError("Error: loading image %s: %v\n", *imagePath, err)
			os.Exit(1)
		}
		img = loaded
	}

	var ocrText string
	if *textPath != "" {
		b, err := os.ReadFile(*textPath)
		if err != nil {
			printError("Error: reading text file %s: %v\n", *textPath, err)
			os.Exit(1)
		}
		ocrText = string(b)
	}

	var candidates []string
	if *scaleTexts != "" {
		for _, s := range strings.Split(*scaleTexts, ",") {
			if s = strings.TrimSpace(s); s != "" {
				candidates = append(candidates, s)
			}
		}
	}

	detector := scale.NewDetector(common.DefaultDetectionConfig(), logger)
	result := detector.Detect(img, ocrText, candidates)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		printError("Error: encoding result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if result.NeedsCalibration {
		os.Exit(3)
	}
}
