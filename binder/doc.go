// Package binder decodes HTTP requests into typed structs for handler.Wrap.
//
// BindJSON reads the body, BindQuery reads `query` tags and Path reads
// `path` tags through a router-specific extractor. Binders run in order on
// the same value, so one request struct may combine all three sources.
package binder
