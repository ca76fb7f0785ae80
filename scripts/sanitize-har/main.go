// sanitize-har removes credentials from diagnostic logs and recordings
// before they are committed as replay fixtures.
//
// Usage:
//
//	go run ./scripts/sanitize-har --recording=resume-session
//	go run ./scripts/sanitize-har --input=bankapi.log --output=internal/api/testdata/recordings/login.har.json
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/grez-lucas/bankapi/internal/har"
	"github.com/grez-lucas/bankapi/internal/logging"
)

const recordingsDir = "internal/api/testdata/recordings"

func main() {
	recording := pflag.StringP("recording", "r", "", "Recording name under "+recordingsDir)
	inputPath := pflag.StringP("input", "i", "", "Input HAR file or diagnostic log")
	outputPath := pflag.StringP("output", "o", "", "Output HAR file path (defaults to input path)")
	dryRun := pflag.Bool("dry-run", false, "Show what would be redacted without writing")
	logLevel := pflag.String("log-level", "info", "Log level: debug, info, warn, error")
	pflag.Parse()

	logging.InitLogger(*logLevel, "text")
	log := logging.Logger

	var inPath, outPath string
	switch {
	case *recording != "":
		inPath = filepath.Join(recordingsDir, *recording+".har.json")
		outPath = inPath
	case *inputPath != "":
		inPath = *inputPath
		outPath = *inputPath
		if *outputPath != "" {
			outPath = *outputPath
		}
	default:
		fmt.Fprintln(os.Stderr, "sanitize-har: remove sensitive data from HAR files before committing")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	log.Info("Loading HAR", "path", inPath)

	original, err := har.LoadHAR(inPath)
	if err != nil {
		log.Error("Failed to load HAR", "error", err)
		os.Exit(1)
	}

	sanitized := har.SanitizeHAR(original)
	log.Info("Sanitized", "entries", len(original.Entries), "redactions", countRedactions(original, sanitized))

	if *dryRun {
		printRedactionSummary(original, sanitized)
		return
	}

	if err := har.SaveHAR(outPath, sanitized); err != nil {
		log.Error("Failed to save HAR", "error", err)
		os.Exit(1)
	}

	log.Info("Sanitized HAR saved", "path", outPath)
}

type change struct {
	entry int
	what  string
}

func diff(original, sanitized *har.HARLog) []change {
	var changes []change

	for i := range original.Entries {
		if i >= len(sanitized.Entries) {
			break
		}
		orig, san := original.Entries[i], sanitized.Entries[i]

		if orig.Request.URL != san.Request.URL {
			changes = append(changes, change{i, "URL query parameters"})
		}
		for j, h := range orig.Request.Headers {
			if j < len(san.Request.Headers) && h.Value != san.Request.Headers[j].Value {
				changes = append(changes, change{i, "request header " + h.Name})
			}
		}
		if orig.Request.Body != san.Request.Body {
			changes = append(changes, change{i, "request body"})
		}
		for j, h := range orig.Response.Headers {
			if j < len(san.Response.Headers) && h.Value != san.Response.Headers[j].Value {
				changes = append(changes, change{i, "response header " + h.Name})
			}
		}
		if orig.Response.Content.Text != san.Response.Content.Text {
			changes = append(changes, change{i, "response body"})
		}
	}

	return changes
}

func countRedactions(original, sanitized *har.HARLog) int {
	return len(diff(original, sanitized))
}

func printRedactionSummary(original, sanitized *har.HARLog) {
	fmt.Println("[DRY RUN] No changes written.")

	last := -1
	for _, c := range diff(original, sanitized) {
		if c.entry != last {
			req := original.Entries[c.entry].Request
			fmt.Printf("\nEntry %d: %s %s\n", c.entry+1, req.Method, truncateURL(req.URL))
			last = c.entry
		}
		fmt.Printf("  - %s redacted\n", c.what)
	}
}

func truncateURL(url string) string {
	if len(url) > 80 {
		return url[:77] + "..."
	}
	return url
}
