// Copyright 2026 The Membrane Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the membrane agent's configuration.
//
// Configuration comes from a single file named by either the
// MEMBRANE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no per-field environment
// override: the file, layered over [Default], is the whole
// configuration. Files ending in .json or .jsonc are accepted as JSON
// with comments; anything else is parsed as YAML. Unknown keys are
// errors.
//
// ${VAR} and ${VAR:-default} patterns are expanded in socket paths and
// addresses after loading. [Config.Validate] checks field ranges with
// validator struct tags and then the cross-field rules the tags cannot
// express.
//
// [SeedConfig.Apply] loads the seed into an in-process oracle.Memory.
package config
