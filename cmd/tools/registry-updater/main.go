// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"visa-checklist/internal/checklist/rules"
	"visa-checklist/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, showCmd, validateCmd} {
		fs.StringVar(&registryPath, "path", "configs/document-templates.json", "Path to registry file")
	}

	// Add command flags
	country := addCmd.String("country", "", "ISO country code, or * for every country")
	visaType := addCmd.String("visaType", "", "Visa type code (tourist, student, ...) or *")
	core := addCmd.String("core", "", "Comma separated core document ids")
	minimum := addCmd.String("minimum", "", "Comma separated minimum document ids")
	notes := addCmd.String("notes", "", "Free text notes")

	// Show command flags
	showCountry := showCmd.String("country", "", "Country code or name")
	showVisa := showCmd.String("visaType", "", "Visa type code or label")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *country == "" || *visaType == "" || (*core == "" && *minimum == "") {
			fmt.Println("Error: country, visaType and at least one of core or minimum are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		t := registry.Template{
			CountryCode: normalizeCountry(*country),
			VisaType:    normalizeVisa(*country, *visaType),
			Core:        splitIDs(*core),
			Minimum:     splitIDs(*minimum),
			Notes:       *notes,
		}
		if err := addTemplate(t); err != nil {
			fmt.Printf("Error adding template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Saved template %s/%s\n", t.CountryCode, t.VisaType)

	case "show":
		showCmd.Parse(os.Args[2:])
		if *showCountry == "" || *showVisa == "" {
			fmt.Println("Error: country and visaType are required for show.")
			showCmd.Usage()
			os.Exit(1)
		}
		if err := showTemplate(*showCountry, *showVisa); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func normalizeCountry(raw string) string {
	if raw == registry.Wildcard {
		return raw
	}
	return rules.NormalizeCountryCode(raw)
}

func normalizeVisa(country, raw string) string {
	if raw == registry.Wildcard {
		return raw
	}
	return rules.NormalizeVisaType(normalizeCountry(country), raw)
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := rules.NormalizeDocumentID(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// loadOrDefault starts from the embedded registry when the file does not
// exist yet.
func loadOrDefault() (*registry.TemplateRegistry, error) {
	reg, err := registry.LoadRegistry(registryPath)
	if os.IsNotExist(err) {
		return registry.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return reg, nil
}

func addTemplate(t registry.Template) error {
	reg, err := loadOrDefault()
	if err != nil {
		return err
	}
	reg.Upsert(t)
	reg.LastUpdated = time.Now().Format("2006-01-02")
	return reg.Save(registryPath)
}

func showTemplate(country, visaType string) error {
	reg, err := loadOrDefault()
	if err != nil {
		return err
	}
	code := rules.NormalizeCountryCode(country)
	visa := rules.NormalizeVisaType(code, visaType)

	fmt.Printf("%s / %s\n", code, visa)
	fmt.Printf("  core:    %s\n", strings.Join(reg.CoreFor(code, visa), ", "))
	fmt.Printf("  minimum: %s\n", strings.Join(reg.MinimumFor(code, visa), ", "))
	if visa == "student" && len(reg.StudentExtras) > 0 {
		fmt.Printf("  student: %s\n", strings.Join(reg.StudentExtras, ", "))
	}
	return nil
}

func validateRegistry() error {
	data, err := os.ReadFile(registryPath)
	if err != nil {
		return fmt.Errorf("failed to read registry: %w", err)
	}
	if err := registry.Validate(data); err != nil {
		return err
	}
	reg, err := registry.Parse(data)
	if err != nil {
		return err
	}

	for _, t := range reg.Templates {
		if len(t.Core) == 0 && len(t.Minimum) == 0 {
			return fmt.Errorf("template %s/%s lists no documents", t.CountryCode, t.VisaType)
		}
	}
	fmt.Printf("Registry validation passed. Found %d templates.\n", len(reg.Templates))
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add       Add or replace a country/visa type template
  show      Print the core and minimum documents that apply to a destination
  validate  Validate the registry file
  help      Show this help message

Examples:
  registry-updater add -country US -visaType student -core passport,i20_form -minimum ds160_confirmation,photo
  registry-updater show -country "United States" -visaType "F-1 Student Visa"
  registry-updater validate -path configs/document-templates.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
