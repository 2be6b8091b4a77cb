// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem under ~/.thinkrag.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: user-editable prompt templates with built-in fallbacks
package file
