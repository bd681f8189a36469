// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent: applying them twice yields the same result.
// Invalid input never produces an error; callers validate the normalized value.
package sanitizer
