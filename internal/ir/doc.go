// Package ir provides the data model shared by every cdclab package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the data model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types in row images (they break byte-identical replay) - use int64
//   - Time is virtual milliseconds relative to scenario start, never wall clock
//   - All JSON tags use snake_case
//   - Operations and captured events are immutable once created
package ir
