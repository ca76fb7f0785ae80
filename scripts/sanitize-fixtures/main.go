// sanitize-fixtures masks personal data in JSON response fixtures copied
// out of a real session.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/pflag"
)

var sanitizePatterns = []struct {
	Pattern     *regexp.Regexp
	Replacement string
	Description string
}{
	// Personnummer, with or without the century and dash.
	{
		regexp.MustCompile(`\b(?:19|20)?\d{6}-?\d{4}\b`),
		`199001011234`,
		"Personal identity number",
	},

	// Swedbank account number as shown in the app
	{
		regexp.MustCompile(`\b\d{4}-\d,\s?\d{3}\s\d{3}\s\d{3}-\d\b`),
		`8327-9, 000 000 000-0`,
		"Account number (clearing format)",
	},

	{
		regexp.MustCompile(`\bSE\d{2}(?:\s?\d{4}){5}\b`),
		`SE0000000000000000000000`,
		"IBAN",
	},

	// Names of account holders and counterparties
	{
		regexp.MustCompile(`(?i)("(?:name|firstName|lastName|holderName|fullName)"\s*:\s*)"[^"]+"`),
		`$1"NAMN EFTERNAMN"`,
		"Full name",
	},

	// Session tokens in JSON
	{
		regexp.MustCompile(`(?i)("[^"]*(?:token|session)[^"]*"\s*:\s*)"[a-zA-Z0-9_\-=.+/]{16,}"`),
		`$1"REDACTED"`,
		"Token",
	},
}

func main() {
	dir := pflag.StringP("dir", "d", filepath.Join("internal", "api", "testdata", "fixtures"), "Fixtures directory")
	dryRun := pflag.Bool("dry-run", false, "Show what would be changed without modifying files")
	pflag.Parse()

	files, err := filepath.Glob(filepath.Join(*dir, "*.json"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No JSON files found in %s\n", *dir)
		os.Exit(1)
	}

	fmt.Printf("🔒 Sanitizing fixtures in %s\n", *dir)
	if *dryRun {
		fmt.Println("    (DRY RUN - no files will be modified)")
	}
	fmt.Println()

	for _, file := range files {
		sanitizeFile(file, *dryRun)
	}

	fmt.Println()
	fmt.Println("✅ Sanitization complete!")
	if *dryRun {
		fmt.Println("    Run without --dry-run to apply changes")
	}
}

func sanitizeFile(path string, dryRun bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("❌ Error reading %s: %v\n", path, err)
		return
	}

	sanitized := string(content)
	changes := []string{}

	for _, pattern := range sanitizePatterns {
		matches := pattern.Pattern.FindAllString(sanitized, -1)
		if len(matches) == 0 {
			continue
		}
		sanitized = pattern.Pattern.ReplaceAllString(sanitized, pattern.Replacement)
		changes = append(changes, fmt.Sprintf("  - %s: %d matched", pattern.Description, len(matches)))
	}

	filename := filepath.Base(path)

	if len(changes) == 0 {
		fmt.Printf("📄 %s: No sensitive data found\n", filename)
		return
	}

	fmt.Printf("📄 %s: Found sensitive data\n", filename)
	for _, change := range changes {
		fmt.Println(change)
	}

	if dryRun {
		return
	}

	if err := os.WriteFile(path, []byte(sanitized), 0o644); err != nil {
		fmt.Printf("    ❌ Error writing %s: %v\n", path, err)
		return
	}
	fmt.Println("    ✅ Sanitized and saved")
}
