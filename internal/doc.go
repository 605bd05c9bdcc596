// Package internal contains the implementation packages of jampass.
//
// # Package Organization
//
//   - compiler: scans pages, resolves x- components, scopes their style and
//     script, and emits plain HTML
//   - memory: fingerprints, the linked-asset dependency graph, and the
//     style/script pools of the page being compiled
//   - build: walks the source tree, decides what to compile, writes output
//   - watcher: fsnotify events debounced into batches
//   - data: records for :for-each, loaded from JSON and Markdown files
//   - env: .env loading
//   - paths: href/src resolution
//   - config, logging, errors, types, version: shared plumbing
//
// # Data Flow
//
// The builder reads a page, asks memory whether it changed, and hands it to
// the compiler. The compiler returns the compiled page with the assets it
// links; the builder writes the page, copies the assets, and records the
// links so a later edit to any of them rebuilds exactly the pages that
// depend on it.
package internal
