// Package confloader loads layered configuration with koanf and watches the
// configuration file for changes.
//
// Priority (highest to lowest):
//
//  1. Overrides (command-line flags)
//  2. Environment variables (IDBRIDGE_SECTION_KEY)
//  3. Configuration file (YAML)
//  4. Values already present in the target struct (defaults)
package confloader
