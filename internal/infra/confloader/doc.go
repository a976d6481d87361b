// Package confloader loads configuration and watches files for changes.
//
// Loader merges, in increasing priority:
//
//  1. Defaults already present in the target struct
//  2. A YAML configuration file
//  3. Environment variables (KATANA_ prefix, "__" between levels)
//  4. Overrides, usually from command-line flags
//
// Watcher reports writes to individual files, watching their parent
// directories so that files replaced by rename are still seen.
package confloader
