// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for lull.
//
// Configuration comes from a single file named by either the LULL_CONFIG
// environment variable (via [Load]) or a --config flag (via [LoadFile]).
// Without either, [Load] returns [Default]. There is no ~/.config
// discovery and no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production without an explicit section
// retries failed downstream invocations three times.
//
// Variable expansion is performed on path fields and the invoker
// command after loading: ${HOME}, ${LULL_ROOT}, and ${VAR:-default}
// patterns are expanded. No other environment variables override
// config values.
//
// Durations are stored as strings and parsed by [Config.Validate],
// [CoordinatorConfig.Durations], and [InvokerConfig.Durations].
//
// This package depends on no other lull packages.
package config
