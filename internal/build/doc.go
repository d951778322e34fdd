// Package build runs a site build.
//
// A build is a fixed sequence of stages: pack_assets, load_cache_manifest,
// init_templates, render_templates, copy_files and, when enabled,
// verify_asset_links. Stages run strictly in order and the first failure
// ends the build; nothing already written is rolled back. Every execution
// path (the build command, watch mode, scheduled rebuilds and tests) goes
// through BuildService.
//
// Cancellation is observed only before the first stage starts. Once a build
// is running it always completes or fails on its own.
package build
