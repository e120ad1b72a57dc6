// Package configs provides embedded configuration templates for recall.
//
// Templates are embedded at build time using Go's //go:embed directive so
// they ship inside the binary itself (source builds and binary releases
// alike).
//
// Template files:
//   - project-config.example.yaml: written by `recall init` to .recall.yaml
//   - user-config.example.yaml: written by `recall config init` to
//     the OS-conventional user config path (internal/rconfig.GetUserConfigPath)
//
// Configuration Hierarchy (see internal/rconfig.Load()):
//  1. Hardcoded defaults (internal/rconfig.NewConfig())
//  2. User config
//  3. Project config (.recall.yaml)
//  4. Environment variables (RECALL_*)
package configs

import _ "embed"

// UserConfigTemplate is written by `recall config init`. It holds
// machine-level settings that apply across every store on the machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written by `recall init`. It holds
// project-level settings version-controlled alongside the store.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
